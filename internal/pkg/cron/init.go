package cron

import log "log/slog"

// InitCron 注册并启动定时任务，表达式非法时返回错误且不启动
func InitCron(mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	log.Info("Cron jobs registered",
		"session_purge", mgr.cfg.SessionPurge,
		"media_cleanup", mgr.cfg.MediaCleanup)
	mgr.Start()
	return nil
}
