package sandbox

import "testing"

func TestContainerSecurityArgsAlwaysDropsCaps(t *testing.T) {
	args := containerSecurityArgs(Config{})
	if !containsArg(args, "--cap-drop") {
		t.Errorf("expected --cap-drop in %v", args)
	}
}

func TestContainerSecurityArgsReadOnlyRoot(t *testing.T) {
	args := containerSecurityArgs(Config{ReadOnlyRoot: true})
	if !containsArg(args, "--read-only") {
		t.Errorf("expected --read-only in %v", args)
	}
}

func TestContainerNetworkArgsDefaultNone(t *testing.T) {
	args := containerNetworkArgs(Config{})
	if !(len(args) == 2 && args[0] == "--network" && args[1] == "none") {
		t.Errorf("expected default network none, got %v", args)
	}
}

func TestContainerNetworkArgsHost(t *testing.T) {
	args := containerNetworkArgs(Config{Network: NetworkHost})
	if !(len(args) == 2 && args[1] == "host") {
		t.Errorf("expected host network, got %v", args)
	}
}

func TestContainerResourceArgsDefaults(t *testing.T) {
	args := containerResourceArgs(Config{})
	if !containsArg(args, "--pids-limit") {
		t.Errorf("expected --pids-limit in %v", args)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
