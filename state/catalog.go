package state

import "fmt"

// effectNames maps known MS-60B+ effect object IDs to display names.
// Artwork/icon lookup lives outside the core; this table only covers the
// handful of blocks seen in dumps so far, everything else gets the hex
// fallback.
var effectNames = map[uint32]string{
	0x0100010: "Compressor",
	0x0100020: "Limiter",
	0x0200010: "Bass Drive",
	0x0200030: "Dark Pre",
	0x0300010: "Graphic EQ",
	0x0400010: "Chorus",
	0x0400020: "Bass Chorus",
	0x0500010: "Delay",
	0x0500030: "Analog Delay",
	0x0600010: "Hall Reverb",
	0x0600020: "Room Reverb",
	0x0700010: "ZNR",
}

// EffectName returns the display name for an effect object ID.
func EffectName(id uint32) string {
	if name, ok := effectNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Effect 0x%08X", id)
}
