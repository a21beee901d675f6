// Package scheduler перечитывает каталог конфигураций flows по расписанию.
//
// Reloader на каждом тике сверяет файлы CONFIG_DIR с тем, что уже
// зарегистрировано в трекере: новые и изменённые файлы регистрируются,
// flows удалённых файлов снимаются с регистрации.
//
// Структура:
//   - scheduler.go — Reloader (Tick, Start, Stop)
//   - cron.go      — разбор cron-выражений
//
// Использование:
//
//	reloader, err := scheduler.New(scheduler.Config{
//	    Source:   store,
//	    Tracker:  tracker,
//	    Settings: settings,
//	    Schedule: "@every 1m",
//	    Logger:   logger,
//	})
//	reloader.Start(ctx)
//	defer reloader.Stop()
package scheduler
