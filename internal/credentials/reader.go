package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// defaultSection holds options inherited by all other sections.
var defaultSection = ini.DefaultSection

// loadOptions mirror configparser: no inline comments, so values such as
// passwords may contain "#" or ";".
var loadOptions = ini.LoadOptions{
	InsensitiveKeys:            true,
	IgnoreInlineComment:        true,
	AllowPythonMultilineValues: true,
}

// Load parses the INI file at path.
func Load(path string) (*ini.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, pipekit.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", path, err, pipekit.ErrInvalidConfig)
	}
	return f, nil
}

// ReadSection returns all key/value pairs of section in the INI file at path,
// including keys inherited from [DEFAULT].
func ReadSection(path, section string) (pipekit.ConfigSection, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return SectionOf(f, section, path)
}

// SectionOf extracts section from an already parsed file. source names the
// file in error messages.
func SectionOf(f *ini.File, section, source string) (pipekit.ConfigSection, error) {
	if !hasSection(f, section) {
		return nil, fmt.Errorf("section %q in %s: %w", section, source, pipekit.ErrSectionNotFound)
	}

	out := make(pipekit.ConfigSection)
	if section != defaultSection {
		for _, k := range f.Section(defaultSection).Keys() {
			out[k.Name()] = value(k)
		}
	}
	for _, k := range f.Section(section).Keys() {
		out[k.Name()] = value(k)
	}
	return out, nil
}

// SectionNames lists the sections defined in the file, [DEFAULT] excluded.
func SectionNames(f *ini.File) []string {
	var names []string
	for _, name := range f.SectionStrings() {
		if name != defaultSection {
			names = append(names, name)
		}
	}
	return names
}

// value returns k after %(name)s interpolation, with the escape %% read as
// a literal percent sign.
func value(k *ini.Key) string {
	return strings.ReplaceAll(k.String(), "%%", "%")
}

func hasSection(f *ini.File, section string) bool {
	if section == defaultSection {
		return true
	}
	_, err := f.GetSection(section)
	return err == nil
}
