package nibe

// f1x45Variables is the register map shared by F1145 and F1245.
var f1x45Variables = map[uint16]VariableInfo{
	40004: {"BT1 Outdoor temp", 10, S16, Sensor},
	40008: {"BT2 Supply temp S1", 10, S16, Sensor},
	40012: {"EB100-EP14-BT3 Return temp", 10, S16, Sensor},
	40013: {"BT7 HW Top", 10, S16, Sensor},
	40014: {"BT6 HW Load", 10, S16, Sensor},
	40015: {"EB100-EP14-BT10 Brine in temp", 10, S16, Sensor},
	40016: {"EB100-EP14-BT11 Brine out temp", 10, S16, Sensor},
	40017: {"EB100-EP14-BT12 Cond. out", 10, S16, Sensor},
	40018: {"EB100-EP14-BT14 Hot gas temp", 10, S16, Sensor},
	40019: {"EB100-EP14-BT15 Liquid line", 10, S16, Sensor},
	40022: {"EB100-EP14-BT17 Suction", 10, S16, Sensor},
	40025: {"BT20 Exhaust air temp. 1", 10, S16, Sensor},
	40026: {"BT21 Vented air temp. 1", 10, S16, Sensor},
	40033: {"BT50 Room Temp S1", 10, S16, Sensor},
	40067: {"BT1 Average", 10, S16, Sensor},
	40071: {"BT25 external supply temp", 10, S16, Sensor},
	40079: {"EB100-BE3 Current", 10, U32, Sensor},
	40081: {"EB100-BE2 Current", 10, U32, Sensor},
	40083: {"EB100-BE1 Current", 10, U32, Sensor},
	43005: {"Degree Minutes", 10, S16, Setting},
	43009: {"Calc. Supply S1", 10, S16, Sensor},
	43081: {"Tot. op.time add.", 10, S32, Sensor},
	43084: {"Int. el.add. Power", 100, S16, Sensor},
	43136: {"Compressor Frequency, Actual", 10, U16, Sensor},
	43239: {"Tot. HW op.time add.", 10, S32, Sensor},
	43416: {"Compressor starts EB100-EP14", 1, S32, Sensor},
	43420: {"Tot. op.time compr. EB100-EP14", 1, S32, Sensor},
	43424: {"Tot. HW op.time compr. EB100-EP14", 1, S32, Sensor},
	43437: {"HM-pump Status EB100-EP14", 1, U8, Sensor},
	43439: {"Brinepump Status EB100-EP14", 1, U8, Sensor},
	43514: {"PCA-Base Relays EB100-EP14", 1, U8, Sensor},
	45001: {"Alarm Number", 1, S16, Sensor},
	47004: {"Heat curve S1", 1, S8, Setting},
	47011: {"Heat Offset S1", 1, S8, Setting},
	47015: {"Min Supply System 1", 10, S16, Setting},
	47019: {"Max Supply System 1", 10, S16, Setting},
	47041: {"Hot water mode", 1, S8, Setting},
	47043: {"Start temperature HW Luxury", 10, S16, Setting},
	47044: {"Start temperature HW Normal", 10, S16, Setting},
	47045: {"Start temperature HW Economy", 10, S16, Setting},
	47049: {"Stop temperature HW Luxury", 10, S16, Setting},
	47050: {"Stop temperature HW Normal", 10, S16, Setting},
	47051: {"Stop temperature HW Economy", 10, S16, Setting},
	47137: {"Operational mode", 1, U8, Setting},
	47138: {"Operational mode heat medium pump", 1, U8, Setting},
	47206: {"DM start heating", 1, S16, Setting},
	47370: {"Allow Additive Heating", 1, U8, Setting},
	47371: {"Allow Heating", 1, U8, Setting},
	47375: {"Stop Temperature Heating", 10, S16, Setting},
	47376: {"Stop Temperature Additive", 10, S16, Setting},
	48132: {"Temporary Lux", 1, U8, Setting},
}
