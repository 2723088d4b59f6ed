// Package dockerexec launches short-lived containers to run a
// shell_sandbox worker's command, rather than exec'ing on the host.
// Adapted from agents/shared/docker's client: trimmed to the
// create/start/exec/remove lifecycle one worker invocation needs.
package dockerexec

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

type Client struct {
	api *client.Client
}

// NewClient negotiates the API version against the default Docker
// host, falling back to auto-detecting a rootless/Colima-style socket
// when DOCKER_HOST is unset and the default ping fails.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if err := ping(cli); err == nil {
		return &Client{api: cli}, nil
	} else if os.Getenv("DOCKER_HOST") != "" {
		_ = cli.Close()
		return nil, err
	}
	_ = cli.Close()
	if host, ok := autoHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr == nil {
			if pingErr := ping(alt); pingErr == nil {
				return &Client{api: alt}, nil
			}
			_ = alt.Close()
		}
	}
	return nil, err
}

func ping(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

// autoHost tries the common non-default socket locations a rootless or
// Colima-style Docker install leaves behind.
func autoHost() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	candidates := []string{
		home + "/.colima/default/docker.sock",
		home + "/.docker/run/docker.sock",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, true
		}
	}
	return "", false
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

func (c *Client) CreateContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, name string) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerStart(ctx, containerID, container.StartOptions{})
}

func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force, RemoveVolumes: true})
}

// Exec runs cmd inside an already-started container and copies its
// demultiplexed stdout/stderr into the given writers, returning an
// error if the exec exits non-zero.
func (c *Client) Exec(ctx context.Context, containerID string, cmd []string, stdout, stderr io.Writer) error {
	if strings.TrimSpace(containerID) == "" {
		return errors.New("container id required")
	}
	if len(cmd) == 0 {
		return errors.New("command required")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	execResp, err := c.api.ContainerExecCreate(ctx, containerID, types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
	})
	if err != nil {
		return err
	}
	attach, err := c.api.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return err
	}
	defer attach.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, attach.Reader); err != nil {
		return err
	}
	inspect, err := c.api.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return err
	}
	if inspect.ExitCode != 0 {
		return errors.New("container command exited non-zero")
	}
	return nil
}
