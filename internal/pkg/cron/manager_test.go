package cron

import (
	"Chatline/internal/api/config"
	"Chatline/internal/job"
	"testing"
	"time"
)

func TestRegisterJobs(t *testing.T) {
	mgr := NewCronManager(config.CronConfig{SessionPurge: "0 */30 * * * *"},
		job.NewSessionPurgeJob(nil, time.Hour), job.NewMediaCleanupJob(nil, time.Hour))
	if err := mgr.RegisterJobs(); err != nil {
		t.Fatalf("RegisterJobs: %v", err)
	}
	if n := len(mgr.engine.Entries()); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}

	bad := NewCronManager(config.CronConfig{MediaCleanup: "every tuesday"},
		job.NewSessionPurgeJob(nil, time.Hour), job.NewMediaCleanupJob(nil, time.Hour))
	if err := bad.RegisterJobs(); err == nil {
		t.Fatal("expected invalid cron expression to fail")
	}
}
