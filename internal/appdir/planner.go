package appdir

import (
	"os"
	"sort"
	"strings"

	"github.com/patrickelectric/linuxdeploy/internal/elfdep"
	"github.com/patrickelectric/linuxdeploy/internal/log"
	"github.com/patrickelectric/linuxdeploy/internal/pathutil"
	"github.com/patrickelectric/linuxdeploy/internal/runner"
)

// planner accumulates deferred copy/strip/rpath work plus the visited set,
// and drains the plan in a fixed order: copies first, then strips, then
// rpath rewrites. Deferring the work means every source file is touched at
// most once no matter how often the dependency walk reaches it. Maps are
// iterated in sorted key order so the drain is deterministic.
type planner struct {
	copyPlan   map[string]string // source -> destination, last-write-wins
	stripSet   map[string]struct{}
	rpathPlan  map[string]string
	visited    map[string]struct{}
	execOnCopy map[string]struct{} // destinations that need chmod +x after copy
}

func newPlanner() *planner {
	return &planner{
		copyPlan:   make(map[string]string),
		stripSet:   make(map[string]struct{}),
		rpathPlan:  make(map[string]string),
		visited:    make(map[string]struct{}),
		execOnCopy: make(map[string]struct{}),
	}
}

func (p *planner) hasVisited(path string) bool {
	_, ok := p.visited[path]
	return ok
}

func (p *planner) markVisited(path string) {
	p.visited[path] = struct{}{}
}

// enqueueCopy registers a copy from src to dst. Last write for a given src
// wins; the once-only guarantee comes from the visited set, checked by
// callers before they ever get here.
func (p *planner) enqueueCopy(src, dst string) {
	p.copyPlan[src] = dst
}

func (p *planner) enqueueStrip(dst string) {
	p.stripSet[dst] = struct{}{}
}

func (p *planner) enqueueRPath(dst, rpath string) {
	p.rpathPlan[dst] = rpath
}

// markExecutable flags dst to have its execute bit set once its copy
// completes. File copies preserve the source mode, which may lack +x when
// the build system produced the binary with conservative permissions.
func (p *planner) markExecutable(dst string) {
	p.execOnCopy[dst] = struct{}{}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// execute drains the plan: copies, then strips (unless $NO_STRIP), then
// rpath rewrites. A failure inside a phase is recorded but the phase keeps
// draining; a hard stop happens between phases if the prior phase had any
// failure.
func (p *planner) execute(oracle elfdep.Oracle, r runner.Runner) error {
	success := true

	for _, src := range sortedKeys(p.copyPlan) {
		dst := p.copyPlan[src]
		log.Infof("Copying file %s to %s", src, dst)
		if err := pathutil.CopyFile(src, dst, false); err != nil {
			log.PrintError("copy "+src+" to "+dst, err)
			success = false
			continue
		}
		if _, wantExec := p.execOnCopy[dst]; wantExec {
			if err := os.Chmod(dst, 0755); err != nil {
				log.PrintError("chmod +x "+dst, err)
				success = false
			}
		}
	}
	p.copyPlan = make(map[string]string)
	p.execOnCopy = make(map[string]struct{})

	if !success {
		return newErr(KindFileSystem, "", "one or more copy operations failed")
	}

	if _, noStrip := os.LookupEnv("NO_STRIP"); noStrip {
		log.Warnf("$NO_STRIP environment variable detected, not stripping binaries")
		p.stripSet = make(map[string]struct{})
	} else {
		for _, target := range sortedSet(p.stripSet) {
			rpath, err := oracle.GetRPath(target)
			if err != nil {
				log.PrintError("read rpath before strip of "+target, err)
				success = false
				continue
			}

			if strings.HasPrefix(rpath, "$") {
				log.Warnf("Not calling strip on binary %s: rpath starts with $", target)
				continue
			}

			log.Infof("Calling strip on library %s", target)

			result, err := r.Run([]string{runner.StripPath(), target}, runner.MergeEnv(map[string]string{"LC_ALL": "C"}))
			if err != nil {
				log.PrintError("strip "+target, err)
				success = false
				continue
			}

			if result.ExitCode != 0 && !strings.Contains(string(result.Stderr), "Not enough room for program headers") {
				log.Errorf("Strip call failed: %s", string(result.Stderr))
				success = false
			}
		}
	}
	p.stripSet = make(map[string]struct{})

	if !success {
		return newErr(KindSubprocess, "", "one or more strip operations failed")
	}

	for _, dst := range sortedKeys(p.rpathPlan) {
		rpath := p.rpathPlan[dst]
		log.Infof("Setting rpath in ELF file %s to %s", dst, rpath)
		if err := oracle.SetRPath(dst, rpath); err != nil {
			log.PrintError("set rpath for "+dst, err)
			success = false
		}
	}
	p.rpathPlan = make(map[string]string)

	if !success {
		return newErr(KindSubprocess, "", "one or more rpath operations failed")
	}

	return nil
}
