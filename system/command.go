package system

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"strings"
)

// CommandExecutor runs a shell command on the console host itself.
// Remote actors never go through it; their commands are relayed to the agent.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, args ...string) (string, error)
	GetOS() string
}

type RealExecutor struct{}

func (e *RealExecutor) Execute(ctx context.Context, command string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (e *RealExecutor) GetOS() string {
	return runtime.GOOS
}

// MockExecutor answers the few commands the console issues locally with
// canned output, so the demo mode works on hosts without ss or an agent.
type MockExecutor struct {
	Outputs map[string]string
}

// MockSocketTable is the ss listing returned by MockExecutor by default.
const MockSocketTable = `Netid State  Recv-Q Send-Q Local Address:Port  Peer Address:Port Process
udp   UNCONN 0      0      127.0.0.53%lo:53      0.0.0.0:*     users:(("systemd-resolve",pid=512,fd=13))
tcp   LISTEN 0      128    0.0.0.0:22          0.0.0.0:*         users:(("sshd",pid=801,fd=3))
tcp   LISTEN 0      128    [::]:22             [::]:*            users:(("sshd",pid=801,fd=4))
tcp   LISTEN 0      5      0.0.0.0:2222        0.0.0.0:*         users:(("socat",pid=1402,fd=5))
tcp   LISTEN 0      100    0.0.0.0:80          0.0.0.0:*         users:(("python3",pid=1377,fd=7))
`

func (e *MockExecutor) Execute(ctx context.Context, command string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line := strings.TrimSpace(command + " " + strings.Join(args, " "))
	Debug("[MockExecutor] Executing: %s", line)

	if out, ok := e.Outputs[line]; ok {
		return out, nil
	}
	if command == "ss" {
		return MockSocketTable, nil
	}
	if command == "false" {
		return "", errors.New("exit status 1")
	}
	return "Mock Success", nil
}

func (e *MockExecutor) GetOS() string {
	return "mock-" + runtime.GOOS
}

func NewExecutor(mock bool) CommandExecutor {
	if mock || runtime.GOOS == "windows" {
		return &MockExecutor{}
	}
	return &RealExecutor{}
}
