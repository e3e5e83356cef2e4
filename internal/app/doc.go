// Package app assembles the bot: config, logging, storage, the Telegram
// gateway, the broadcast dispatcher, the schedule engine and the command
// router, plus the housekeeping cron.
package app
