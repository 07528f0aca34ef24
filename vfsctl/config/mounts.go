// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
	"kvfs.dev/kvfs/pkg/abi/linux"
)

// Filesystem types accepted in a mount table.
const (
	MemFS = "memfs"
	FAT32 = "fat32"
	DevFS = "devfs"
	SysFS = "sysfs"
)

// Archive formats a memfs mount can be loaded from.
const (
	FormatTar  = "tar"
	FormatCpio = "cpio"
)

// Mount is one entry of a mount table.
type Mount struct {
	// Path is the absolute path the filesystem is mounted on. "/" makes it
	// the namespace root.
	Path string `toml:"path" yaml:"path"`

	// Type is one of MemFS, FAT32, DevFS or SysFS.
	Type string `toml:"type" yaml:"type"`

	// Source is the archive a memfs is loaded from, or the image a fat32
	// is read from.
	Source string `toml:"source" yaml:"source"`

	// Format is the archive format of a memfs source. It is inferred from
	// the source name when empty.
	Format string `toml:"format" yaml:"format"`

	// ReadOnly opens the source read-only. Unset means false.
	ReadOnly *bool `toml:"readonly" yaml:"readonly"`

	// Options holds type specific settings:
	//
	//	memfs: mode (octal root mode)
	//	devfs: nonblock (bool)
	Options map[string]string `toml:"options" yaml:"options"`
}

// IsReadOnly returns the value of ReadOnly, defaulting to false.
func (m *Mount) IsReadOnly() bool {
	return m.ReadOnly != nil && *m.ReadOnly
}

// RootMode returns the mode of a memfs root directory.
func (m *Mount) RootMode() linux.FileMode {
	mode, err := strconv.ParseUint(m.Options["mode"], 8, 32)
	if err != nil {
		return linux.DefaultDirMode
	}
	return linux.S_IFDIR | linux.FileMode(mode)&(linux.PermissionsMask|linux.ModeSticky)
}

// NonBlocking reports whether devfs character devices fail reads with
// EAGAIN instead of blocking.
func (m *Mount) NonBlocking() bool {
	b, _ := strconv.ParseBool(m.Options["nonblock"])
	return b
}

func (m *Mount) String() string {
	if m.Source == "" {
		return fmt.Sprintf("%s on %s", m.Type, m.Path)
	}
	return fmt.Sprintf("%s on %s from %s", m.Type, m.Path, m.Source)
}

// withDefaults returns a copy of defaults overlaid with the fields set in m.
func (m *Mount) withDefaults(defaults *Mount) Mount {
	out := deepcopy.Copy(*defaults).(Mount)
	if m.Path != "" {
		out.Path = m.Path
	}
	if m.Type != "" {
		out.Type = m.Type
	}
	if m.Source != "" {
		out.Source = m.Source
	}
	if m.Format != "" {
		out.Format = m.Format
	}
	if m.ReadOnly != nil {
		ro := *m.ReadOnly
		out.ReadOnly = &ro
	}
	if len(m.Options) > 0 && out.Options == nil {
		out.Options = make(map[string]string, len(m.Options))
	}
	for k, v := range m.Options {
		out.Options[k] = v
	}
	return out
}

func (m *Mount) validate() error {
	if !path.IsAbs(m.Path) || path.Clean(m.Path) != m.Path {
		return fmt.Errorf("mount path %q must be absolute and clean", m.Path)
	}
	switch m.Type {
	case MemFS:
		if m.Format == "" && m.Source != "" {
			m.Format = FormatTar
			if strings.HasSuffix(m.Source, ".cpio") {
				m.Format = FormatCpio
			}
		}
		switch m.Format {
		case "", FormatTar, FormatCpio:
		default:
			return fmt.Errorf("mount %q: invalid archive format %q, must be %q or %q", m.Path, m.Format, FormatTar, FormatCpio)
		}
		if mode, ok := m.Options["mode"]; ok {
			if _, err := strconv.ParseUint(mode, 8, 32); err != nil {
				return fmt.Errorf("mount %q: invalid mode %q: %w", m.Path, mode, err)
			}
		}
	case FAT32:
		if m.Source == "" {
			return fmt.Errorf("mount %q: fat32 requires a source image", m.Path)
		}
		if m.Format != "" {
			return fmt.Errorf("mount %q: format is only valid for memfs", m.Path)
		}
	case DevFS, SysFS:
		if m.Source != "" {
			return fmt.Errorf("mount %q: %s takes no source", m.Path, m.Type)
		}
		if m.Format != "" {
			return fmt.Errorf("mount %q: format is only valid for memfs", m.Path)
		}
		if nb, ok := m.Options["nonblock"]; ok {
			if _, err := strconv.ParseBool(nb); err != nil {
				return fmt.Errorf("mount %q: invalid nonblock %q: %w", m.Path, nb, err)
			}
		}
	default:
		return fmt.Errorf("mount %q: unknown filesystem type %q", m.Path, m.Type)
	}
	return nil
}

// MountTable is the content of a mount table file.
type MountTable struct {
	// Defaults is merged into every entry of Mounts.
	Defaults Mount `toml:"defaults" yaml:"defaults"`

	Mounts []Mount `toml:"mount" yaml:"mounts"`

	// dir is the directory of the file the table was read from. Relative
	// sources are resolved against it.
	dir string
}

// DefaultMountTable is used when no mount table is configured.
func DefaultMountTable() *MountTable {
	return &MountTable{
		Mounts: []Mount{
			{Path: "/", Type: MemFS},
			{Path: "/dev", Type: DevFS},
			{Path: "/sys", Type: SysFS},
		},
	}
}

// LoadMountTable reads a mount table. Files ending in .toml are parsed as
// TOML, files ending in .yaml or .yml as YAML. Unknown keys are errors.
func LoadMountTable(filename string) (*MountTable, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	var t MountTable
	switch ext := filepath.Ext(filename); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &t)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", filename, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing %q: unknown keys %v", filename, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("mount table %q: unknown extension %q, must be .toml, .yaml or .yml", filename, ext)
	}
	t.dir = filepath.Dir(filename)
	return &t, nil
}

// Resolve merges the defaults into every entry and validates the result.
// Entries are returned parents first; the root entry, if any, comes first.
func (t *MountTable) Resolve() ([]Mount, error) {
	seen := make(map[string]struct{}, len(t.Mounts))
	mounts := make([]Mount, 0, len(t.Mounts))
	for i := range t.Mounts {
		m := t.Mounts[i].withDefaults(&t.Defaults)
		if err := m.validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[m.Path]; ok {
			return nil, fmt.Errorf("duplicate mount on %q", m.Path)
		}
		seen[m.Path] = struct{}{}
		if m.Source != "" && t.dir != "" && !filepath.IsAbs(m.Source) {
			m.Source = filepath.Join(t.dir, m.Source)
		}
		mounts = append(mounts, m)
	}

	// Sort the mounts so that we don't place children before parents.
	sort.SliceStable(mounts, func(i, j int) bool {
		return depth(mounts[i].Path) < depth(mounts[j].Path)
	})
	return mounts, nil
}

func depth(p string) int {
	if p == "/" {
		return 0
	}
	return strings.Count(p, "/")
}
