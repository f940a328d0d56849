package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

var iniOptions = ini.LoadOptions{
	InsensitiveKeys:     true,
	IgnoreInlineComment: true,
}

// readINI parses the sectioned format: one section per process, in file
// order, plus the optional [watchdog] section for global knobs. Keys in
// [DEFAULT] apply to every section that does not set them.
func readINI(path string) (*fileConfig, error) {
	f, err := ini.LoadSources(iniOptions, path)
	if err != nil {
		return nil, err
	}
	def := f.Section(ini.DefaultSection)
	fc := &fileConfig{}

	if f.HasSection(GlobalSection) {
		if f.Section(GlobalSection).HasKey("path") {
			return nil, fmt.Errorf("[%s] is reserved for global settings and cannot define a process path; rename the section", GlobalSection)
		}
		if err := fc.readGlobalSection(f.Section(GlobalSection)); err != nil {
			return nil, fmt.Errorf("[%s]: %w", GlobalSection, err)
		}
	}

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == GlobalSection {
			continue
		}
		get := func(key string) string { return lookup(sec, def, key) }
		pc := procConfig{
			Name:           name,
			Path:           get("path"),
			Kind:           get("kind"),
			Restart:        get("restart"),
			Backoff:        get("backoff"),
			InitialBackoff: get("initial_backoff"),
			MaxBackoff:     get("max_backoff"),
		}
		if a, ok := lookupOK(sec, def, "args"); ok {
			pc.Args = a
		}
		if v, ok := lookupOK(sec, def, "max_retries"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("[%s]: invalid max_retries %q", name, v)
			}
			pc.MaxRetries = &n
		}
		if v := get("multiplier"); v != "" {
			m, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("[%s]: invalid multiplier %q", name, v)
			}
			pc.Multiplier = m
		}
		fc.Processes = append(fc.Processes, pc)
	}
	return fc, nil
}

func (fc *fileConfig) readGlobalSection(sec *ini.Section) error {
	str := func(key string) string { return strings.TrimSpace(sec.Key(key).String()) }
	fc.PollInterval = str("poll_interval")
	fc.Restart = str("restart")
	fc.Backoff = str("backoff")
	fc.InitialBackoff = str("initial_backoff")
	fc.MaxBackoff = str("max_backoff")
	fc.LogLevel = str("log_level")
	fc.LogFormat = str("log_format")
	fc.OutputDir = str("output_dir")
	fc.MetricsListen = str("metrics_listen")
	fc.APIListen = str("api_listen")
	if sec.HasKey("log_file") {
		lf := str("log_file")
		fc.LogFile = &lf
	}
	if v := str("history_dsn"); v != "" {
		fc.HistoryDSN = []string{v}
	}

	var err error
	num := func(key string, dst *int) {
		if err != nil || !sec.HasKey(key) {
			return
		}
		if *dst, err = sec.Key(key).Int(); err != nil {
			err = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	flag := func(key string, dst *bool) {
		if err != nil || !sec.HasKey(key) {
			return
		}
		if *dst, err = sec.Key(key).Bool(); err != nil {
			err = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	num("max_retries", &fc.MaxRetries)
	num("log_max_size_mb", &fc.LogMaxSizeMB)
	num("log_max_backups", &fc.LogMaxBackups)
	num("log_max_age_days", &fc.LogMaxAgeDays)
	flag("log_color", &fc.LogColor)
	flag("log_compress", &fc.LogCompress)
	if err == nil && sec.HasKey("multiplier") {
		if fc.Multiplier, err = sec.Key("multiplier").Float64(); err != nil {
			err = fmt.Errorf("invalid multiplier: %w", err)
		}
	}
	return err
}

func lookup(sec, def *ini.Section, key string) string {
	v, _ := lookupOK(sec, def, key)
	return v
}

func lookupOK(sec, def *ini.Section, key string) (string, bool) {
	if sec.HasKey(key) {
		return strings.TrimSpace(sec.Key(key).String()), true
	}
	if def != nil && def.HasKey(key) {
		return strings.TrimSpace(def.Key(key).String()), true
	}
	return "", false
}
