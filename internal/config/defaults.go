package config

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9994"
	defaultWatchInterval    = 1200
	defaultWatchHistoryPath = "data/checks.db"
	defaultMessagesPath     = "configs/messages.yaml"
	defaultHistoryLimit     = 50
	defaultProbeTimeout     = 30
	defaultSoldOutMarker    = "Currently all event tickets are sold-out!"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Watch.applyDefaults(keys)
	c.Probe.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (w *WatchConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("watch.history_path", &w.HistoryPath, defaultWatchHistoryPath),
		stringFieldDefault("watch.messages_path", &w.MessagesPath, defaultMessagesPath),
		fieldDefault{
			key:   "watch.interval_seconds",
			need:  func() bool { return w.IntervalSeconds == 0 },
			apply: func() { w.IntervalSeconds = defaultWatchInterval },
		},
		fieldDefault{
			key:   "watch.history_limit",
			need:  func() bool { return w.HistoryLimit <= 0 },
			apply: func() { w.HistoryLimit = defaultHistoryLimit },
		},
	)
}

func (p *ProbeConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("probe.sold_out_marker", &p.SoldOutMarker, defaultSoldOutMarker),
		fieldDefault{
			key:   "probe.timeout_seconds",
			need:  func() bool { return p.TimeoutSeconds <= 0 },
			apply: func() { p.TimeoutSeconds = defaultProbeTimeout },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && *target == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
