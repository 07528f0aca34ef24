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

package fat32

import (
	"encoding/binary"
	"fmt"
	"strings"

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// SectorSize is the only sector size this driver supports.
const SectorSize = 512

// Offsets into the boot sector.
const (
	bpbBytesPerSector    = 11
	bpbSectorsPerCluster = 13
	bpbReservedSectors   = 14
	bpbFATCount          = 16
	bpbTotalSectors      = 32
	bpbSectorsPerFAT     = 36
	bpbRootCluster       = 44
	bpbSignature         = 0x42
	bpbVolumeLabel       = 71
	bpbVolumeLabelLen    = 11
)

// BPB is the BIOS parameter block of a FAT32 volume, as found in its boot
// sector.
type BPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCount          uint8
	TotalSectors      uint32
	SectorsPerFAT     uint32
	RootCluster       uint32

	// Signature is the extended boot signature, 0x28 or 0x29.
	Signature uint8

	// VolumeLabel is only present with signature 0x29.
	VolumeLabel string
}

// ParseBPB decodes and validates the boot sector in buf.
func ParseBPB(buf []byte) (BPB, error) {
	if len(buf) < SectorSize {
		return BPB{}, fmt.Errorf("boot sector is %d bytes: %w", len(buf), linuxerr.EINVAL)
	}
	le := binary.LittleEndian
	b := BPB{
		BytesPerSector:    le.Uint16(buf[bpbBytesPerSector:]),
		SectorsPerCluster: buf[bpbSectorsPerCluster],
		ReservedSectors:   le.Uint16(buf[bpbReservedSectors:]),
		FATCount:          buf[bpbFATCount],
		TotalSectors:      le.Uint32(buf[bpbTotalSectors:]),
		SectorsPerFAT:     le.Uint32(buf[bpbSectorsPerFAT:]),
		RootCluster:       le.Uint32(buf[bpbRootCluster:]),
		Signature:         buf[bpbSignature],
	}
	switch b.Signature {
	case 0x29:
		b.VolumeLabel = strings.TrimRight(string(buf[bpbVolumeLabel:bpbVolumeLabel+bpbVolumeLabelLen]), " \x00")
	case 0x28:
	default:
		return BPB{}, fmt.Errorf("bad extended boot signature %#x: %w", b.Signature, linuxerr.EINVAL)
	}
	if b.BytesPerSector != SectorSize {
		return BPB{}, fmt.Errorf("unsupported sector size %d: %w", b.BytesPerSector, linuxerr.EINVAL)
	}
	if spc := b.SectorsPerCluster; spc == 0 || spc&(spc-1) != 0 {
		return BPB{}, fmt.Errorf("bad sectors per cluster %d: %w", spc, linuxerr.EINVAL)
	}
	if b.FATCount == 0 || b.SectorsPerFAT == 0 {
		return BPB{}, fmt.Errorf("no file allocation table: %w", linuxerr.EINVAL)
	}
	if b.RootCluster < firstCluster {
		return BPB{}, fmt.Errorf("bad root cluster %d: %w", b.RootCluster, linuxerr.EINVAL)
	}
	if b.RootCluster >= b.ClusterLimit() {
		return BPB{}, fmt.Errorf("root cluster %d past end of volume: %w", b.RootCluster, linuxerr.EINVAL)
	}
	return b, nil
}

// ClusterSize returns the cluster size in bytes.
func (b *BPB) ClusterSize() int64 {
	return int64(b.SectorsPerCluster) * SectorSize
}

// FATOffset returns the byte offset of the first FAT.
func (b *BPB) FATOffset() int64 {
	return int64(b.ReservedSectors) * SectorSize
}

// dataSector is the first sector of cluster 2.
func (b *BPB) dataSector() int64 {
	return int64(b.ReservedSectors) + int64(b.FATCount)*int64(b.SectorsPerFAT)
}

// ClusterOffset returns the byte offset of cluster c.
//
// Precondition: c >= 2.
func (b *BPB) ClusterOffset(c uint32) int64 {
	return ((int64(c)-firstCluster)*int64(b.SectorsPerCluster) + b.dataSector()) * SectorSize
}

// ClusterLimit returns one past the highest valid cluster number. It is
// bounded by both the FAT size and, if recorded, the volume size.
func (b *BPB) ClusterLimit() uint32 {
	limit := int64(b.SectorsPerFAT) * SectorSize / 4
	if b.TotalSectors != 0 {
		data := int64(b.TotalSectors) - b.dataSector()
		if data < 0 {
			data = 0
		}
		if n := data/int64(b.SectorsPerCluster) + firstCluster; n < limit {
			limit = n
		}
	}
	if limit > clusterMask {
		limit = clusterMask
	}
	return uint32(limit)
}
