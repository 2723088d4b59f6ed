// Package worker implements the per-worker_type handlers the Worker
// Runner dispatches into (spec.md §4.7, supplemented by §5.3's sandbox
// handlers). The container-backed handler is grounded on
// agents/shared/docker/client.go (adapted into internal/dockerexec);
// the local fallback's pty read-loop is grounded on
// tools/codex-interactive-driver/main.go.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/creack/pty"
	dockercontainer "github.com/docker/docker/api/types/container"

	"clawos/internal/dockerexec"
)

// RunContext carries the bindings a worker handler needs: which
// workspace/task/subagent it is running under, and a callback into the
// dispatcher for nested actions, pre-marked as already authorized by
// the outer DCT (spec.md §4.7 step 4).
type RunContext struct {
	WorkspaceID string
	TaskID      string
	SubagentID  string
	Dispatch    func(ctx context.Context, actionType string, payload json.RawMessage) (json.RawMessage, error)
}

// HandlerFunc runs a subagent's input, returning the content that gets
// persisted as the resulting artifact.
type HandlerFunc func(ctx context.Context, rc RunContext, input json.RawMessage) (string, error)

// Registry is the static worker_type -> HandlerFunc map, separate from
// the dispatcher's action_type registry: worker_type names the kind of
// subagent, not the tool it happens to call first.
type Registry map[string]HandlerFunc

func echoHandler(_ context.Context, _ RunContext, input json.RawMessage) (string, error) {
	return string(input), nil
}

// webResearcherHandler delegates to the dispatcher's web_search action
// and returns its result verbatim as the subagent's artifact content.
func webResearcherHandler(ctx context.Context, rc RunContext, input json.RawMessage) (string, error) {
	out, err := rc.Dispatch(ctx, "web_search", input)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

type shellInput struct {
	Command []string `json:"command"`
	Image   string   `json:"image,omitempty"`
}

// shellSandboxHandler runs Command inside a short-lived, auto-removed
// container rather than on the host.
func shellSandboxHandler(ctx context.Context, rc RunContext, input json.RawMessage) (string, error) {
	var in shellInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	if len(in.Command) == 0 {
		return "", errors.New("missing command")
	}
	image := in.Image
	if image == "" {
		image = "alpine:3.19"
	}

	cli, err := dockerexec.NewClient()
	if err != nil {
		return "", fmt.Errorf("shell_sandbox: docker unavailable: %w", err)
	}
	defer cli.Close()

	name := "clawos-worker-" + rc.SubagentID
	containerID, err := cli.CreateContainer(ctx,
		&dockercontainer.Config{Image: image, Cmd: []string{"sleep", "300"}, Tty: false},
		&dockercontainer.HostConfig{AutoRemove: true}, name)
	if err != nil {
		return "", fmt.Errorf("shell_sandbox: create container: %w", err)
	}
	if err := cli.StartContainer(ctx, containerID); err != nil {
		return "", fmt.Errorf("shell_sandbox: start container: %w", err)
	}
	defer cli.RemoveContainer(context.Background(), containerID, true)

	var stdout, stderr bytes.Buffer
	if err := cli.Exec(ctx, containerID, in.Command, &stdout, &stderr); err != nil {
		return "", fmt.Errorf("shell_sandbox: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// shellLocalHandler is the non-container fallback: it captures a
// pty-backed command's output directly, for environments without a
// Docker daemon.
func shellLocalHandler(ctx context.Context, _ RunContext, input json.RawMessage) (string, error) {
	var in shellInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	if len(in.Command) == 0 {
		return "", errors.New("missing command")
	}

	cmd := exec.CommandContext(ctx, in.Command[0], in.Command[1:]...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return "", err
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	readBuf := make([]byte, 4096)
	for {
		n, readErr := ptmx.Read(readBuf)
		if n > 0 {
			buf.Write(readBuf[:n])
		}
		if readErr != nil {
			break
		}
	}
	if waitErr := cmd.Wait(); waitErr != nil {
		return buf.String(), fmt.Errorf("shell_local: %w", waitErr)
	}
	return buf.String(), nil
}

func DefaultRegistry() Registry {
	return Registry{
		"default":        echoHandler,
		"web_researcher": webResearcherHandler,
		"shell_sandbox":  shellSandboxHandler,
		"shell_local":    shellLocalHandler,
	}
}
