package state

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deniswernert/go-fstab"
	"github.com/ephroot/takeover/internal/constants"
	internalUtils "github.com/ephroot/takeover/internal/utils"
	"github.com/ephroot/takeover/pkg/arch"
	"github.com/ephroot/takeover/pkg/bootstrap"
	"github.com/ephroot/takeover/pkg/config"
	"github.com/ephroot/takeover/pkg/op"
	"github.com/spectrocloud-labs/herd"
)

// State threads the resolved configuration and the run's accumulated facts
// through the takeover sequence. Configuration is immutable after New;
// everything else is written exactly once by the op that produces it.
type State struct {
	Config config.Config

	// Boot is the architecture record resolved during preflight.
	Boot arch.Bootstrap
	// Secret is the generated session credential for the interactive shell.
	Secret string
	// Guard is armed when the staging root exists and rollback is still safe.
	Guard *op.CleanupGuard
	// Builder owns the image-population steps.
	Builder *bootstrap.Builder

	pivot    PivotState
	terminal string // controlling tty, e.g. /dev/pts/0
	initPath string // resolved live init binary, e.g. /sbin/init
	stubPath string // generated stub inside the staging tree

	fstabs []*fstab.Mount
	input  *bufio.Reader
}

func New(cfg config.Config) *State {
	return &State{
		Config:  cfg,
		Builder: bootstrap.NewBuilder(cfg, cfg.StagingDir),
		pivot:   AwaitingOperator,
		input:   bufio.NewReader(os.Stdin),
	}
}

func (s *State) path(p ...string) string {
	return filepath.Join(append([]string{s.Config.StagingDir}, p...)...)
}

// Register wires the full takeover DAG: orchestration, image build,
// environment preparation and the pivot engine, in strict forward order.
// Every op is fatal, so the first failure stops the run and surfaces its
// error to the caller instead of just skipping dependents.
func (s *State) Register(g *herd.Graph) error {
	for _, register := range []func(*herd.Graph) error{
		s.RegisterOrchestration,
		s.RegisterBuild,
		s.RegisterEnvironment,
		s.RegisterPivot,
	} {
		if err := register(g); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup fires the rollback guard if it is still armed. No-op after commit.
func (s *State) Cleanup() {
	if s.Guard != nil {
		s.Guard.Trigger()
	}
}

// AddToFstab records an entry for the new root's fstab, skipping duplicates.
func (s *State) AddToFstab(tmpFstab *fstab.Mount) {
	for _, f := range s.fstabs {
		if f.Spec == tmpFstab.Spec && f.File == tmpFstab.File {
			internalUtils.Log.Debug().Interface("existing", f).Msg("Duplicated fstab entry found, not adding")
			return
		}
	}
	s.fstabs = append(s.fstabs, tmpFstab)
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, o := range layer {
			if o.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", o.Name, o.Error.Error(), o.Background, o.WeakDeps, o.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", o.Name, o.Background, o.WeakDeps, o.Executed)
			}
		}
	}
	return
}

// confirm prompts the operator for the exact confirmation literal. Anything
// else aborts; while the guard is armed this is a safe abort.
func (s *State) confirm(prompt string) error {
	fmt.Fprintf(os.Stderr, "%s\nType %s to continue: ", prompt, constants.ConfirmLiteral)
	line, err := s.input.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if strings.TrimSpace(line) != constants.ConfirmLiteral {
		return constants.ErrOperatorAbort
	}
	return nil
}
