// Package backup writes cron-scheduled JSON snapshots of the book into a
// backups directory under the data root, pruning old pairs past retention.
package backup

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"turnero/internal/export"
	appLog "turnero/internal/log"
	"turnero/internal/model"
)

const stampLayout = "20060102-150405"

// Runner drives the scheduled backups.
type Runner struct {
	c         *cron.Cron
	dir       string
	retention int
	snapshot  func() model.AppState
}

// Start schedules backups under <dataDir>/backups per the cron spec. An empty
// spec disables scheduling; Run can still be called manually.
func Start(spec, dataDir string, retention int, snapshot func() model.AppState) (*Runner, error) {
	r := &Runner{
		dir:       filepath.Join(dataDir, "backups"),
		retention: retention,
		snapshot:  snapshot,
	}
	if spec == "" {
		return r, nil
	}

	r.c = cron.New()
	if _, err := r.c.AddFunc(spec, func() {
		if err := r.Run(); err != nil {
			appLog.Error("scheduled backup failed", err)
		}
	}); err != nil {
		return nil, err
	}
	r.c.Start()
	appLog.Info("backup scheduler started", "cron", spec, "dir", r.dir)
	return r, nil
}

// Stop halts the scheduler, waiting for a running backup to finish.
func (r *Runner) Stop() {
	if r.c != nil {
		<-r.c.Stop().Done()
	}
}

// Run writes one timestamped backup pair and prunes old ones.
func (r *Runner) Run() error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	st := r.snapshot()
	stamp := time.Now().Format(stampLayout)

	patients, err := export.PatientsJSON(st)
	if err != nil {
		return err
	}
	appointments, err := export.AppointmentsJSON(st)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(r.dir, stamp+"-patients.json"), patients, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(r.dir, stamp+"-appointments.json"), appointments, 0o600); err != nil {
		return err
	}

	appLog.Info("backup written", "stamp", stamp,
		"patients", len(st.Patients), "appointments", len(st.Appointments))
	return r.prune()
}

// prune removes the oldest backup pairs beyond retention. Stamps sort
// lexicographically, so name order is age order.
func (r *Runner) prune() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	stamps := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if i := strings.Index(name, "-patients.json"); i > 0 {
			stamps[name[:i]] = true
		}
	}
	if len(stamps) <= r.retention {
		return nil
	}

	ordered := make([]string, 0, len(stamps))
	for s := range stamps {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	for _, s := range ordered[:len(ordered)-r.retention] {
		os.Remove(filepath.Join(r.dir, s+"-patients.json"))
		os.Remove(filepath.Join(r.dir, s+"-appointments.json"))
	}
	return nil
}
