// Package capability aggregates what the platform currently provides and
// answers which requirements of a container image are not met.
//
// Provisions come from two sources, in this order:
//   - platform configuration, as config:<KEY>=<value> tags for
//     CONTAINER_ENVIRONMENT, PLATFORM_ENVIRONMENT, SESSION_POLICY and ENABLE_AUTH
//   - every running container: image:<name>, the image's own provides entries,
//     agent:<type> per hosted agent and action:<name> per exposed action
//
// Matching is exact string equality. When running containers cannot be
// enumerated (backend unreachable or too slow) the provisions list is empty,
// so every requirement is reported missing and no deployment is approved on
// unknown state.
package capability
