package main

type PortalConfig struct {
	BaseUrl string `json:"base_url"`
}

type Config struct {
	Port     int          `json:"port"`
	Database string       `json:"database"`
	Portal   PortalConfig `json:"portal"`
}
