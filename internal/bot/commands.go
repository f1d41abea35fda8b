package bot

// Bot commands.
const (
	CommandStart  = "/start"
	CommandHelp   = "/help"
	CommandCancel = "/cancel"
	CommandAdmin  = "/admin"
)
