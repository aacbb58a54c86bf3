package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "CDZ_DATABASE_TYPE"
const DATABASE_URL = "CDZ_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "CDZ_DATABASE_SQLLITE_FILE_NAME"
const ENGINE_SERVER_WEB_PORT = "CDZ_ENGINE_SERVER_WEB_PORT"
const ENGINE_POLL_INTERVAL = "CDZ_ENGINE_POLL_INTERVAL"
const ENGINE_STUCK_EXECUTIONS_INTERVAL = "CDZ_ENGINE_STUCK_EXECUTIONS_INTERVAL"
const ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES = "CDZ_ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES"
const ENGINE_BATCH_SIZE = "CDZ_ENGINE_BATCH_SIZE" //number of due executions to pull from the database at a time
const ENGINE_GROUP = "CDZ_ENGINE_GROUP"           //the group this instance claims executions from
const ENGINE_WORKER_SIZE = "CDZ_ENGINE_WORKER_SIZE"
const RUNNER_NAME = "CDZ_RUNNER_NAME"
const ENGINE_ACTION_TIMEOUT = "CDZ_ENGINE_ACTION_TIMEOUT" //bound on a single action's execution
const DEFINITIONS_DIR = "CDZ_DEFINITIONS_DIR"
const SMTP_ADDR = "CDZ_SMTP_ADDR"
const SMTP_FROM = "CDZ_SMTP_FROM"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == ENGINE_POLL_INTERVAL {
		return "3s" // due-execution scan; bounds wait precision
	}
	if settingKey == ENGINE_STUCK_EXECUTIONS_INTERVAL {
		return "60s"
	}
	if settingKey == ENGINE_STUCK_EXECUTIONS_REPAIR_AFTER_MINUTES {
		return "5"
	}
	if settingKey == ENGINE_BATCH_SIZE {
		return "10"
	}
	if settingKey == ENGINE_WORKER_SIZE {
		return "5"
	}
	if settingKey == ENGINE_GROUP {
		return "default"
	}
	if settingKey == ENGINE_ACTION_TIMEOUT {
		return "30s"
	}
	if settingKey == ENGINE_SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./cadenza.db"
	}
	return ""
}
