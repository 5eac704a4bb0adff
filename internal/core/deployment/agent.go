package deployment

import (
	"fmt"
	"regexp"
	"strconv"
)

// =============================================================================
// Credential Agent Output
// =============================================================================

// Environment variables that point child processes at a running agent.
const (
	AgentSocketEnv = "SSH_AUTH_SOCK"
	AgentPIDEnv    = "SSH_AGENT_PID"
)

var (
	agentSocketRegex = regexp.MustCompile(`SSH_AUTH_SOCK=([^;\s]+)`)
	agentPIDRegex    = regexp.MustCompile(`SSH_AGENT_PID=(\d+)`)
)

// AgentCoordinates identifies a running credential agent.
type AgentCoordinates struct {
	Socket string
	PID    int
}

// Env returns the variables a child process needs to reach the agent.
func (a AgentCoordinates) Env() map[string]string {
	return map[string]string{
		AgentSocketEnv: a.Socket,
		AgentPIDEnv:    strconv.Itoa(a.PID),
	}
}

// ParseAgentOutput extracts the socket path and pid from the Bourne shell
// output of `ssh-agent -s`:
//
//	SSH_AUTH_SOCK=/tmp/ssh-XXXX/agent.123; export SSH_AUTH_SOCK;
//	SSH_AGENT_PID=124; export SSH_AGENT_PID;
//	echo Agent pid 124;
func ParseAgentOutput(output string) (AgentCoordinates, error) {
	sock := agentSocketRegex.FindStringSubmatch(output)
	if len(sock) < 2 {
		return AgentCoordinates{}, &AgentError{Op: "parse agent output", Output: output, Err: fmt.Errorf("%w: no %s", ErrAgentSpawn, AgentSocketEnv)}
	}
	pid := agentPIDRegex.FindStringSubmatch(output)
	if len(pid) < 2 {
		return AgentCoordinates{}, &AgentError{Op: "parse agent output", Output: output, Err: fmt.Errorf("%w: no %s", ErrAgentSpawn, AgentPIDEnv)}
	}
	n, err := strconv.Atoi(pid[1])
	if err != nil || n <= 0 {
		return AgentCoordinates{}, &AgentError{Op: "parse agent output", Output: output, Err: fmt.Errorf("%w: invalid pid %q", ErrAgentSpawn, pid[1])}
	}
	return AgentCoordinates{Socket: sock[1], PID: n}, nil
}
