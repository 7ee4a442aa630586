package archive

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sells-group/gridconv/internal/griddata"
)

// inflight holds the extraction dirs of every Cache in this process, so one Cache's
// Purge never removes another's acquisitions.
var inflight = struct {
	sync.Mutex
	dirs map[string]struct{}
}{dirs: make(map[string]struct{})}

func hold(dir string) {
	inflight.Lock()
	inflight.dirs[dir] = struct{}{}
	inflight.Unlock()
}

func unhold(dir string) {
	inflight.Lock()
	delete(inflight.dirs, dir)
	inflight.Unlock()
}

func held(dir string) bool {
	inflight.Lock()
	defer inflight.Unlock()
	_, ok := inflight.dirs[dir]
	return ok
}

// dirName is <prefix><zone>-<pid>-<uuid>. The pid lets other processes sharing the
// scratch dir tell live extractions from orphans.
func dirName(zone string) string {
	return griddata.ZoneArchivePrefix + zone + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()
}

// ownerPID parses the pid out of an extraction dir name.
func ownerPID(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, griddata.ZoneArchivePrefix)
	if !ok {
		return 0, false
	}
	parts := strings.SplitN(rest, "-", 3)
	if len(parts) != 3 {
		return 0, false
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// orphaned reports whether the extraction dir may be purged: nothing in this process
// holds it, and it is untagged or its owning process has exited.
func orphaned(dir, name string) bool {
	if held(dir) {
		return false
	}
	pid, ok := ownerPID(name)
	if !ok || pid == os.Getpid() {
		return true
	}
	return !processAlive(pid)
}
