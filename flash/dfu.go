// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package flash

import "fmt"

// DFUDescriptor reports the writable-page descriptor string for the
// AgentHdr+AgentCode region, consumed by the USB DFU update transport. The
// IssuedCerts page is reported writable only when writeLocked is false:
// pages holding the read-only issued-cert region are writable only when
// the corresponding flag in that region's header is clear.
//
// This is the read-side counterpart to WriteRegion: it lets a host-side
// DFU tool query updatable pages before attempting a firmware update.
func (s *Store) DFUDescriptor(writeLocked bool) (string, error) {
	hdr, err := s.Layout.Extent(AgentHdr)
	if err != nil {
		return "", err
	}

	code, err := s.Layout.Extent(AgentCode)
	if err != nil {
		return "", err
	}

	if s.Layout.PageSize == 0 {
		return "", fmt.Errorf("flash: page size not configured")
	}

	agentPages := (hdr.Size + code.Size) / s.Layout.PageSize

	mode := byte('g')
	if writeLocked {
		mode = 'a'
	}

	return fmt.Sprintf("@Barnacle /%#08x/%02d*004Kg,01*04K%c", hdr.Base, agentPages, mode), nil
}
