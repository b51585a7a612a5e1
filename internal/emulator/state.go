package emulator

import (
	"rinnai_gateway/internal/appliance"
)

// DefaultState is a gas-heating-only installation running in heating mode.
func DefaultState() appliance.StateTree {
	return appliance.StateTree{
		"SYST": {
			"CFG": {
				"MTSP": "N",
				"DF":   "N",
				"TU":   "C",
				"CF":   "2",
				"ZA":   "Living",
				"ZB":   "Bedrooms",
				"ZC":   "",
				"ZD":   "",
				"VR":   "0183",
				"CV":   "0010",
				"CC":   "043F",
				"NC":   "N",
			},
			"AVM": {
				"HG": "Y",
				"EC": "N",
				"CG": "N",
				"RA": "N",
				"RH": "N",
				"RC": "N",
			},
			"OSS": {
				"DY": "MON",
				"TM": "08:30",
				"RG": "Y",
				"ST": "N",
				"MD": "H",
			},
			"FLT": {
				"AV": "N",
				"GP": "N",
				"UT": "",
				"TP": "N",
				"CD": "",
			},
		},
		"HGOM": {
			"CFG": {
				"ZUIS": "N",
				"ZAIS": "Y",
				"ZBIS": "Y",
				"ZCIS": "N",
				"ZDIS": "N",
				"CF":   "N",
				"PS":   "Y",
				"DG":   "W",
			},
			"OOP": {
				"ST": "N",
				"CF": "N",
				"FL": "16",
				"SN": "Y",
			},
			"GSO": {
				"OP": "M",
				"SP": "22",
			},
			"GSS": {
				"HC": "Y",
				"FS": "N",
				"AT": "999",
			},
			"ZUS": {"MT": "999"},
			"ZAO": {"SP": "22"},
			"ZAS": {"MT": "18"},
			"ZBO": {"SP": "20"},
			"ZBS": {"MT": "17"},
			"ZCO": {"SP": "999"},
			"ZCS": {"MT": "999"},
			"ZDO": {"SP": "999"},
			"ZDS": {"MT": "999"},
		},
	}
}
