package state

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/spectrocloud-labs/herd"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sys/unix"
)

// RegisterPivot adds the pivot engine: terminal capture, credentials, the
// init stub, the remote-access escape hatch, the irreversible commit and the
// init re-exec. Ordering is strict and enforced twice, once by the graph and
// once by the pivot state machine.
func (s *State) RegisterPivot(g *herd.Graph) error {
	steps := []struct {
		name string
		deps []string
		call func(context.Context) error
	}{
		{constants.OpTakeTerminal, []string{constants.OpWriteFstab}, s.takeTerminal},
		{constants.OpSetCredentials, []string{constants.OpTakeTerminal}, s.setCredentials},
		{constants.OpInitStub, []string{constants.OpSetCredentials}, s.initStub},
		{constants.OpRemoteAccess, []string{constants.OpInitStub}, s.remoteAccess},
		{constants.OpCommit, []string{constants.OpRemoteAccess}, s.commit},
		{constants.OpReexec, []string{constants.OpCommit}, s.reexec},
	}

	for _, step := range steps {
		if err := g.Add(step.name, herd.WithDeps(step.deps...), herd.WithCallback(step.call), herd.FatalOp); err != nil {
			return err
		}
	}
	return nil
}

// takeTerminal resolves the controlling terminal and re-binds the standard
// streams onto its path inside the staging tree. Same device either way, but
// the staged path survives the pivot, so the stub inherits a working console.
func (s *State) takeTerminal(_ context.Context) error {
	terminal, err := os.Readlink("/proc/self/fd/0")
	if err != nil {
		return fmt.Errorf("resolving controlling terminal: %w", err)
	}
	if !strings.HasPrefix(terminal, "/dev/") {
		return fmt.Errorf("stdin is %s, not a terminal", terminal)
	}
	s.terminal = terminal
	internalUtils.Log.Info().Str("terminal", terminal).Msg("Controlling terminal resolved")

	staged := s.path(terminal)
	f, err := os.OpenFile(staged, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening staged terminal %s: %w", staged, err)
	}
	for _, fd := range []int{0, 1, 2} {
		if err := unix.Dup2(int(f.Fd()), fd); err != nil {
			return fmt.Errorf("rebinding fd %d: %w", fd, err)
		}
	}

	if err := s.confirm("The staging image is built. Continuing binds this terminal to the takeover session."); err != nil {
		return err
	}

	return s.transition(SessionEstablished)
}

// setCredentials assigns the generated session secret as the root password of
// the staged image. The image ships with the account locked, so this is the
// only way in after the pivot.
func (s *State) setCredentials(_ context.Context) error {
	chroot := internalUtils.NewChroot(s.Config.StagingDir).AlreadyPrepared()
	stdin := strings.NewReader(s.Secret + "\n" + s.Secret + "\n")
	out, err := chroot.RunWithStdin("passwd root", stdin)
	if err != nil {
		return fmt.Errorf("setting session credentials: %w (%s)", err, strings.TrimSpace(out))
	}
	return nil
}

// initStub resolves the live init binary and writes the replacement program
// it will be re-exec'd into. Nothing is mounted over anything yet.
func (s *State) initStub(_ context.Context) error {
	initPath, err := os.Readlink(internalUtils.GetHostProcInit())
	if err != nil {
		return fmt.Errorf("resolving live init: %w", err)
	}
	// A deleted-but-running init reads as "/sbin/init (deleted)".
	s.initPath = strings.TrimSuffix(initPath, " (deleted)")

	stubPath, err := WriteStub(s.Config.StagingDir, s.terminal)
	if err != nil {
		return fmt.Errorf("writing init stub: %w", err)
	}
	s.stubPath = stubPath
	internalUtils.Log.Info().Str("init", s.initPath).Str("stub", stubPath).Msg("Init stub staged")
	return nil
}

// remoteAccess regenerates the image's SSH host identity, starts sshd from
// the staged tree, probes it with the session credentials and then holds for
// the operator's final go-ahead. This is the last safe stop.
func (s *State) remoteAccess(_ context.Context) error {
	chroot := internalUtils.NewChroot(s.Config.StagingDir).AlreadyPrepared()

	for _, keyType := range constants.HostKeyTypes() {
		keyFile := fmt.Sprintf("/etc/ssh/ssh_host_%s_key", keyType)
		if _, err := chroot.Run(fmt.Sprintf("rm -f %s %s.pub", keyFile, keyFile)); err != nil {
			return fmt.Errorf("clearing %s host key: %w", keyType, err)
		}
		if out, err := chroot.Run(fmt.Sprintf("ssh-keygen -q -t %s -f %s -N ''", keyType, keyFile)); err != nil {
			return fmt.Errorf("generating %s host key: %w (%s)", keyType, err, strings.TrimSpace(out))
		}
	}

	port := s.Config.SSHPort
	if out, err := chroot.Run(fmt.Sprintf("/usr/sbin/sshd -p %d -o PermitRootLogin=yes", port)); err != nil {
		return fmt.Errorf("starting sshd: %w (%s)", err, strings.TrimSpace(out))
	}

	if err := s.probeSSH(port); err != nil {
		return fmt.Errorf("sshd never became reachable on port %d: %w", port, err)
	}
	internalUtils.Log.Info().Int("port", port).Msg("Remote-access daemon reachable")

	prompt := fmt.Sprintf(
		"Remote access is live: ssh -p %d root@<this-host>, password %q.\n"+
			"Verify it from a second session NOW. The next step is irreversible.",
		port, s.Secret)
	if err := s.confirm(prompt); err != nil {
		return err
	}

	return s.transition(Prepared)
}

// probeSSH authenticates against the freshly started daemon with the session
// secret. This is a readiness wait, not an error retry: sshd forks before it
// listens, so a few connection refusals right after startup are expected.
func (s *State) probeSSH(port int) error {
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", port))
	cfg := &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.Password(s.Secret)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	return retry.Do(
		func() error {
			client, err := ssh.Dial("tcp", addr, cfg)
			if err != nil {
				return err
			}
			return client.Close()
		},
		retry.Attempts(10),
		retry.Delay(500*time.Millisecond),
	)
}

// commit performs the single irreversible operation: bind-mounting the stub
// over the live init binary. One syscall, atomic, and only reachable from the
// Prepared state with the rollback guard still armed.
func (s *State) commit(_ context.Context) error {
	if s.pivot != Prepared {
		return constants.ErrNotCommittable
	}

	if err := unix.Mount(s.stubPath, s.initPath, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("binding stub over %s: %w", s.initPath, err)
	}

	// Past this point rollback would yank the root out from under a
	// committed pivot, so the guard stands down for good.
	s.Guard.Disarm()
	internalUtils.Log.Info().Str("init", s.initPath).Msg("Committed: init is now the takeover stub")

	return s.transition(Committed)
}

// reexec asks the running init to re-execute itself, which lands it in the
// stub. On failure after commit there is no automatic path back; the operator
// gets told exactly what to do by hand.
func (s *State) reexec(_ context.Context) error {
	if err := triggerReexec(); err != nil {
		return fmt.Errorf(
			"%w: the stub is already bound over %s; trigger the re-exec manually (systemctl daemon-reexec, telinit u, or kill -HUP 1)",
			err, s.initPath)
	}

	if err := s.transition(ReexecTriggered); err != nil {
		return err
	}

	internalUtils.Log.Info().Int("seconds", constants.ReexecSettleSeconds).Msg("Re-exec triggered, settling")
	time.Sleep(constants.ReexecSettleSeconds * time.Second)
	return nil
}

func triggerReexec() error {
	if _, err := os.Stat("/run/systemd/system"); err == nil {
		return runHostCommand("systemctl", "daemon-reexec")
	}
	if _, err := exec.LookPath("telinit"); err == nil {
		return runHostCommand("telinit", "u")
	}
	return fmt.Errorf("no supported init re-exec mechanism found")
}

func runHostCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
