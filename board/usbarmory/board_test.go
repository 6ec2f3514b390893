// Barnacle - measured boot loader for i.MX6UL
// https://github.com/usbarmory/barnacle
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package usbarmory

import (
	"bytes"
	"testing"
	"time"

	"github.com/usbarmory/barnacle/firewall"
	"github.com/usbarmory/barnacle/flash"
	"github.com/usbarmory/barnacle/hwcrypto"
	"github.com/usbarmory/barnacle/internal/debug"
)

func TestNewBoardBootRuns(t *testing.T) {
	l := layout()
	mem := flash.NewMemFlash(flashBase, agentHdrSize+agentCodeSize+issuedSize+deviceIDSize+cacheSize, l.PageSize)

	gate := &firewall.SoftwareGate{}
	b := New(mem, gate, debug.Discard)

	prim := hwcrypto.Software{}
	code := bytes.Repeat([]byte{0x90}, 512)
	digest := prim.Hash(code)

	if err := b.Store.WriteRegion(flash.AgentCode, code); err != nil {
		t.Fatal(err)
	}

	hdr := &flash.AgentHeader{
		Magic:   flash.Magic,
		Version: flash.HeaderVersion,
		Size:    agentHdrSize,
		Agent:   flash.AgentInfo{Version: 1, Issued: 1, Size: uint32(len(code)), Digest: digest},
	}
	copy(hdr.Agent.Name[:], "usbarmory-agent")

	if err := b.Store.WriteRegion(flash.AgentHdr, hdr.Bytes(hwcrypto.CoordSize())); err != nil {
		t.Fatal(err)
	}

	res, err := b.Run(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.CertStore) == 0 {
		t.Fatal("expected a non-empty cert store")
	}

	if !gate.Enabled {
		t.Fatal("expected the firewall gate to be enabled after Run")
	}

	if blocked := gate.Access(keyMaterialBase + 0x100); !blocked {
		t.Fatal("expected the sealed key-material region to report a blocked access")
	}
}
