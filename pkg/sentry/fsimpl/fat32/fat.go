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

	"kvfs.dev/kvfs/pkg/errors/linuxerr"
)

// FAT entry values.
const (
	firstCluster = 2
	clusterMask  = 0x0fffffff
	clusterBad   = 0x0ffffff7
	clusterEOC   = 0x0ffffff8
)

// chain returns the clusters of the chain starting at first, in order. A
// chain that leaves the volume, hits a bad or free cluster, or loops is
// reported as EIO.
func (fs *Filesystem) chain(first uint32) ([]uint32, error) {
	limit := fs.bpb.ClusterLimit()
	var clusters []uint32
	var buf [SectorSize]byte
	sector := int64(-1)
	for c := first; ; {
		if c < firstCluster || c >= limit {
			warnLog.Warningf("fat32: cluster %d out of range in chain from %d", c, first)
			return nil, linuxerr.EIO
		}
		if uint32(len(clusters)) >= limit {
			warnLog.Warningf("fat32: loop in chain from %d", first)
			return nil, linuxerr.EIO
		}
		clusters = append(clusters, c)

		off := fs.bpb.FATOffset() + int64(c)*4
		if s := off / SectorSize; s != sector {
			if err := fs.dev.Read(s*SectorSize, buf[:]); err != nil {
				return nil, err
			}
			sector = s
		}
		next := binary.LittleEndian.Uint32(buf[off%SectorSize:]) & clusterMask
		switch {
		case next >= clusterEOC:
			return clusters, nil
		case next == clusterBad, next == 0:
			warnLog.Warningf("fat32: cluster %d links to %#x in chain from %d", c, next, first)
			return nil, linuxerr.EIO
		}
		c = next
	}
}

// readCluster fills buf, which must be one cluster long, with cluster c.
func (fs *Filesystem) readCluster(c uint32, buf []byte) error {
	return fs.dev.Read(fs.bpb.ClusterOffset(c), buf)
}
