package cron

import (
	"Chatline/internal/api/config"
	"Chatline/internal/job"
	log "log/slog"

	"github.com/robfig/cron/v3"
)

type Manager struct {
	engine          *cron.Cron
	cfg             config.CronConfig
	sessionPurgeJob *job.SessionPurgeJob
	mediaCleanupJob *job.MediaCleanupJob
}

func NewCronManager(cfg config.CronConfig, sessionPurgeJob *job.SessionPurgeJob, mediaCleanupJob *job.MediaCleanupJob) *Manager {
	return &Manager{
		engine:          cron.New(cron.WithSeconds()),
		cfg:             cfg,
		sessionPurgeJob: sessionPurgeJob,
		mediaCleanupJob: mediaCleanupJob,
	}
}

// RegisterJobs 注册定时任务，表达式为空的任务不注册
func (s *Manager) RegisterJobs() error {
	jobs := []struct {
		spec string
		job  cron.Job
	}{
		{s.cfg.SessionPurge, s.sessionPurgeJob},
		{s.cfg.MediaCleanup, s.mediaCleanupJob},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.engine.AddJob(j.spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(j.job)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron engine started", "entries", len(s.engine.Entries()))
	s.engine.Start()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Manager) Stop() {
	log.Info("Cron engine stopping")
	<-s.engine.Stop().Done()
}
