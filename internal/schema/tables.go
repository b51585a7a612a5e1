package schema

var (
	operatingModes = MustCodeTable(
		Code{"H", "heating"},
		Code{"E", "evapCooling"},
		Code{"C", "addonCooling"},
		Code{"R", "reverseCycle"},
		Code{"N", "none"},
	)
	faultLocations = MustCodeTable(
		Code{"H", "heating"},
		Code{"E", "evapCooling"},
		Code{"C", "addonCooling"},
		Code{"R", "reverseCycle"},
		Code{"N", "controller"},
	)
)

var systemTable = mustTable(
	Field{Name: "multiSetPoint", Path: MustParsePath("SYST.CFG.MTSP"), Codes: yesNo, Description: "Multi set point control enabled"},
	Field{Name: "dualFuelAllowed", Path: MustParsePath("SYST.CFG.DF"), Codes: yesNo, Description: "Dual fuel control allowed"},
	Field{Name: "tempUnit", Path: MustParsePath("SYST.CFG.TU"), Description: "Temperature display units"},
	Field{Name: "clockFormat", Path: MustParsePath("SYST.CFG.CF"), Codes: MustCodeTable(Code{"1", 12}, Code{"2", 24}), Description: "Clock display format (hours)"},
	Field{Name: "descriptionZoneA", Path: MustParsePath("SYST.CFG.ZA"), Description: "Zone A description"},
	Field{Name: "descriptionZoneB", Path: MustParsePath("SYST.CFG.ZB"), Description: "Zone B description"},
	Field{Name: "descriptionZoneC", Path: MustParsePath("SYST.CFG.ZC"), Description: "Zone C description"},
	Field{Name: "descriptionZoneD", Path: MustParsePath("SYST.CFG.ZD"), Description: "Zone D description"},
	Field{Name: "fwVersion", Path: MustParsePath("SYST.CFG.VR"), Description: "N-BW2 firmware version"},
	Field{Name: "fwWifiVersion", Path: MustParsePath("SYST.CFG.CV"), Description: "N-BW2 WiFi module firmware version"},
	Field{Name: "certChecksum", Path: MustParsePath("SYST.CFG.CC"), Description: "Certificate checksum value"},
	Field{Name: "nc7", Path: MustParsePath("SYST.CFG.NC"), Codes: yesNo, Description: "N-C7 based system"},
	Field{Name: GasHeating, Path: MustParsePath("SYST.AVM.HG"), Codes: yesNo, Description: "Gas heating installed"},
	Field{Name: EvapCooling, Path: MustParsePath("SYST.AVM.EC"), Codes: yesNo, Description: "Evaporative cooling installed"},
	Field{Name: AddonCooling, Path: MustParsePath("SYST.AVM.CG"), Codes: yesNo, Description: "Add-on cooling installed"},
	Field{Name: ReverseCycle, Path: MustParsePath("SYST.AVM.RA"), Codes: yesNo, Description: "Reverse-cycle air conditioning installed"},
	Field{Name: "reverseCycleHeating", Path: MustParsePath("SYST.AVM.RH"), Codes: yesNo, Description: "Reverse-cycle heating installed"},
	Field{Name: "reverseCycleCooling", Path: MustParsePath("SYST.AVM.RC"), Codes: yesNo, Description: "Reverse-cycle cooling installed"},
	Field{Name: "networkerDay", Path: MustParsePath("SYST.OSS.DY"), Description: "Networker day of the week"},
	Field{Name: "networkerTime", Path: MustParsePath("SYST.OSS.TM"), Description: "Networker time"},
	Field{Name: "registeredMaster", Path: MustParsePath("SYST.OSS.RG"), Codes: yesNo, Description: "Module is registered with the master networker"},
	Field{
		Name:        "operatingState",
		Path:        MustParsePath("SYST.OSS.ST"),
		Codes:       MustCodeTable(Code{"N", "normal"}, Code{"C", "clock"}, Code{"P", "parameter"}, Code{"U", "user"}, Code{"Y", "pin"}),
		Description: "Operating state",
	},
	Field{
		Name:        "operatingMode",
		Path:        MustParsePath("SYST.OSS.MD"),
		Codes:       operatingModes,
		Writable:    true,
		Services:    []string{GasHeating, EvapCooling, AddonCooling},
		Description: "Operating mode",
	},
	Field{Name: "faultDetected", Path: MustParsePath("SYST.FLT.AV"), Codes: yesNo, Description: "Fault has been detected"},
	Field{Name: "faultLocation", Path: MustParsePath("SYST.FLT.GP"), Codes: faultLocations, Description: "Device type exhibiting fault"},
	Field{Name: "faultDeviceId", Path: MustParsePath("SYST.FLT.UT"), Description: "Device id exhibiting fault"},
	Field{
		Name:        "faultSeverity",
		Path:        MustParsePath("SYST.FLT.TP"),
		Codes:       MustCodeTable(Code{"M", "minor"}, Code{"B", "busy"}, Code{"L", "lockout"}),
		Description: "Fault severity",
	},
	Field{Name: "faultCode", Path: MustParsePath("SYST.FLT.CD"), Description: "Fault code"},
)

// zonedServices share the zone, fan and temperature fields.
var zonedServices = []string{GasHeating, AddonCooling, ReverseCycle}

// ServiceFields generates the field table of a service from its protocol
// group code. It is pure; the registry calls it once per service.
func ServiceFields(code string) *Table {
	at := func(rest string) Path { return MustParsePath(code + "." + rest) }
	zoned := func(name, rest string, codes *CodeTable, writable bool, desc string) Field {
		return Field{Name: name, Path: at(rest), Codes: codes, Writable: writable, Services: zonedServices, Description: desc}
	}
	return mustTable(
		zoned("commonZone", "CFG.ZUIS", yesNo, false, "Common zone enabled"),
		zoned("zoneA", "CFG.ZAIS", yesNo, false, "Zone A enabled"),
		zoned("zoneB", "CFG.ZBIS", yesNo, false, "Zone B enabled"),
		zoned("zoneC", "CFG.ZCIS", yesNo, false, "Zone C enabled"),
		zoned("zoneD", "CFG.ZDIS", yesNo, false, "Zone D enabled"),
		zoned("circulationFan", "CFG.CF", yesNo, false, "Circulation fan enabled"),
		zoned("operatingState", "OOP.ST", MustCodeTable(Code{"F", "off"}, Code{"N", "on"}, Code{"Z", "fan"}), true, "Operating state"),
		zoned("fanSpeed", "OOP.FL", nil, true, "Fan speed (0-16)"),
		zoned("currentTemp", "ZUS.MT", nil, false, "Current temperature (999=unavailable)"),
		zoned("setTemp", "GSO.SP", nil, true, "Set temperature (0-30)"),
		zoned("currentTempZoneA", "ZAS.MT", nil, false, "Zone A current temperature (999=unavailable)"),
		zoned("setTempZoneA", "ZAO.SP", nil, true, "Zone A set temperature (0-30)"),
		zoned("currentTempZoneB", "ZBS.MT", nil, false, "Zone B current temperature (999=unavailable)"),
		zoned("setTempZoneB", "ZBO.SP", nil, true, "Zone B set temperature (0-30)"),
		zoned("currentTempZoneC", "ZCS.MT", nil, false, "Zone C current temperature (999=unavailable)"),
		zoned("setTempZoneC", "ZCO.SP", nil, true, "Zone C set temperature (0-30)"),
		zoned("currentTempZoneD", "ZDS.MT", nil, false, "Zone D current temperature (999=unavailable)"),
		zoned("setTempZoneD", "ZDO.SP", nil, true, "Zone D set temperature (0-30)"),
		Field{
			Name:        "reverseCycleMode",
			Path:        at("GSO.AM"),
			Codes:       MustCodeTable(Code{"C", "cooling"}, Code{"D", "cooling_heating"}, Code{"H", "heating"}),
			Writable:    true,
			Services:    []string{ReverseCycle},
			Description: "Reverse-cycle mode",
		},
	)
}
