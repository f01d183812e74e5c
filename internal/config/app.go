package config

type AppConfig struct {
	Keeper KeeperConfig
	Log    LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	keeperCfg, err := LoadKeeper()
	if err != nil {
		return AppConfig{}, err
	}
	if err := keeperCfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Keeper: keeperCfg,
		Log:    logCfg,
	}, nil
}
