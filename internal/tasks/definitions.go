package tasks

// DefineTasks registers all available tasks on r and returns it.
func DefineTasks(r *Registry) *Registry {
	// Squads
	r.Register(SquadSummaryTask.TaskID(), SquadSummaryTask.HandleExecution)

	// Notifications
	r.Register(SendNotificationTask.TaskID(), SendNotificationTask.HandleExecution)
	r.Register(SquadReminderTask.TaskID(), SquadReminderTask.HandleExecution)
	return r
}
