package types

type Config struct {
	DB     *DBConfig     `json:"db,omitempty"`
	Server *ServerConfig `json:"server,omitempty"`
	Export *ExportConfig `json:"export,omitempty"`
}

type DBConfig struct {
	Type  string `json:"type"`
	Path  string `json:"path"`
	Debug bool   `json:"debug,omitempty"`
}

type ServerConfig struct {
	Listen string `json:"listen"`
	// Rollover is "on-read" or "scheduled".
	Rollover         string      `json:"rollover"`
	RolloverInterval string      `json:"rollover_interval,omitempty"`
	Lock             *LockConfig `json:"lock,omitempty"`
}

type LockConfig struct {
	Redis string `json:"redis,omitempty"`
}

type ExportConfig struct {
	Dir      string `json:"dir"`
	Compress bool   `json:"compress"`
	Workers  int    `json:"workers"`
}
