package main

import "time"

type Config struct {
	System            string        `env:"CONFERENCE_SYSTEM,default=sandbox"`
	PlatformDomain    string        `env:"PLATFORM_DOMAIN,required=true"`
	ClientID          string        `env:"PLATFORM_CLIENT_ID,required=true"`
	AccessToken       string        `env:"PLATFORM_ACCESS_TOKEN,required=true"`
	DialoutGrace      time.Duration `env:"DIALOUT_GRACE,default=1s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=5s"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=1337"`
}
