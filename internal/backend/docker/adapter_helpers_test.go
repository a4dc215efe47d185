package docker

import (
	"testing"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

func sampleRequest() types.StartRequest {
	return types.StartRequest{
		ContainerID: "ctr_01",
		Image: types.AgentContainerImage{
			ImageName:  "registry.local/calc:1.0",
			Provides:   []string{"image:calc", "agent:Calculator"},
			Requires:   []string{"config:ENABLE_AUTH=true"},
			APIPort:    8080,
			ExtraPorts: []int{9090},
		},
		Ports: []int{20000, 20001},
		Owner: "alice",
	}
}

func TestPortBindings(t *testing.T) {
	exposed, bindings, err := portBindings(sampleRequest())
	require.NoError(t, err)

	assert.Len(t, exposed, 2)
	assert.Equal(t, "20000", bindings[nat.Port("8080/tcp")][0].HostPort)
	assert.Equal(t, "20001", bindings[nat.Port("9090/tcp")][0].HostPort)
}

func TestPortBindingsNotEnoughReserved(t *testing.T) {
	req := sampleRequest()
	req.Ports = req.Ports[:1]

	_, _, err := portBindings(req)
	assert.Error(t, err)
}

func TestPortBindingsNoAPIPort(t *testing.T) {
	req := sampleRequest()
	req.Image.APIPort = 0

	exposed, bindings, err := portBindings(req)
	require.NoError(t, err)
	assert.Nil(t, exposed)
	assert.Nil(t, bindings)
}

func TestLabelsRoundTrip(t *testing.T) {
	req := sampleRequest()
	labels, err := containerLabels(req)
	require.NoError(t, err)

	assert.Equal(t, managedByValue, labels[labelManagedBy])
	assert.Equal(t, "ctr_01", labels[labelContainerID])
	assert.Equal(t, "alice", labels[labelOwner])
	assert.Equal(t, "image:calc,agent:Calculator", labels[LabelProvides])

	img, err := imageFromLabels(labels, "ignored")
	require.NoError(t, err)
	assert.Equal(t, req.Image, img)
}

func TestImageFromPlainLabels(t *testing.T) {
	img, err := imageFromLabels(map[string]string{
		LabelProvides: "image:x, agent:Y ,",
		LabelRequires: "",
	}, "x:latest")
	require.NoError(t, err)

	assert.Equal(t, "x:latest", img.ImageName)
	assert.Equal(t, []string{"image:x", "agent:Y"}, img.Provides)
	assert.Nil(t, img.Requires)
}

func TestAgentsFromLabels(t *testing.T) {
	agents, ok, err := agentsFromLabels(map[string]string{
		LabelAgents: `[{"agentId":"calc","agentType":"Calculator","actions":[{"name":"Add","parameters":{"a":{"name":"a","type":"Integer","required":true}}}]}]`,
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, agents, 1)
	action, found := agents[0].Action("Add")
	require.True(t, found)
	assert.True(t, action.Parameters["a"].Required)

	_, ok, err = agentsFromLabels(map[string]string{})
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = agentsFromLabels(map[string]string{LabelAgents: "{broken"})
	assert.Error(t, err)
}

func TestFromSummary(t *testing.T) {
	labels, err := containerLabels(sampleRequest())
	require.NoError(t, err)

	rc, err := fromSummary(dockertypes.Container{
		ID:      "abcdef",
		Names:   []string{"/ctr_01"},
		Labels:  labels,
		Created: 1767225600,
		Ports: []dockertypes.Port{
			{PrivatePort: 8080, PublicPort: 20000, Type: "tcp"},
			{PrivatePort: 9090, PublicPort: 20001, Type: "tcp"},
			{PrivatePort: 7000, Type: "tcp"},
		},
	}, "agents.example.com")
	require.NoError(t, err)

	assert.Equal(t, "ctr_01", rc.ID)
	assert.Equal(t, "alice", rc.Owner)
	require.NotNil(t, rc.Connectivity)
	assert.Equal(t, "http://agents.example.com:20000", rc.Connectivity.PublicURL)
	assert.Equal(t, []int{20000, 20001}, rc.Connectivity.Ports)
	assert.Equal(t, int64(1767225600), rc.StartedAt.Unix())
}

func TestFromInspect(t *testing.T) {
	labels, err := containerLabels(sampleRequest())
	require.NoError(t, err)

	inspect := dockertypes.ContainerJSON{
		ContainerJSONBase: &dockertypes.ContainerJSONBase{
			ID:    "abcdef",
			Name:  "/ctr_01",
			State: &dockertypes.ContainerState{StartedAt: "2026-01-01T00:00:00.5Z"},
		},
		Config: &container.Config{Image: "registry.local/calc:1.0", Labels: labels},
		NetworkSettings: &dockertypes.NetworkSettings{
			NetworkSettingsBase: dockertypes.NetworkSettingsBase{
				Ports: nat.PortMap{
					"8080/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "20000"}},
				},
			},
		},
	}

	// Without the agents label the container cannot describe itself
	_, err = fromInspect(inspect, "localhost")
	assert.ErrorIs(t, err, backend.ErrNotDescribed)

	inspect.Config.Labels[LabelAgents] = `[{"agentId":"calc","agentType":"Calculator","actions":[]}]`
	rc, err := fromInspect(inspect, "localhost")
	require.NoError(t, err)
	assert.Equal(t, "ctr_01", rc.ID)
	require.Len(t, rc.Agents, 1)
	assert.Equal(t, "http://localhost:20000", rc.Connectivity.PublicURL)
	assert.Equal(t, 2026, rc.StartedAt.Year())
}

func TestFromInspectIncomplete(t *testing.T) {
	_, err := fromInspect(dockertypes.ContainerJSON{}, "localhost")
	assert.Error(t, err)
}
