package controller

// hidDescriptor is the HID report descriptor carried in attribute 0x0206 of
// the service record, hex-encoded. It declares the vendor report set the
// report protocol uses: input reports 0x21/0x30/0x31/0x3F and output
// reports 0x01/0x10/0x11.
const hidDescriptor = "05010905a1010601ff" +
	"85210921750895308102" +
	"85300930750895308102" +
	"8531093175089669018102" +
	"853f093f7508950b8102" +
	"85010901750895309102" +
	"85100910750895309102" +
	"8511091175089669019102" +
	"8512091275089669019102" +
	"c0"

// serviceRecord is the SDP record describing a wireless gamepad over
// HID/L2CAP: service class 0x1124, HIDP over L2CAP PSM 17 with the
// additional interrupt descriptor on PSM 19, HID profile 1.1, subclass
// gamepad, and the normally-connectable/battery-powered flags the console
// verifies before reconnecting.
const serviceRecord = `<?xml version="1.0" encoding="UTF-8" ?>
<record>
	<attribute id="0x0001">
		<sequence>
			<uuid value="0x1124" />
		</sequence>
	</attribute>
	<attribute id="0x0004">
		<sequence>
			<sequence>
				<uuid value="0x0100" />
				<uint16 value="0x0011" />
			</sequence>
			<sequence>
				<uuid value="0x0011" />
			</sequence>
		</sequence>
	</attribute>
	<attribute id="0x0005">
		<sequence>
			<uuid value="0x1002" />
		</sequence>
	</attribute>
	<attribute id="0x0006">
		<sequence>
			<uint16 value="0x656e" />
			<uint16 value="0x006a" />
			<uint16 value="0x0100" />
		</sequence>
	</attribute>
	<attribute id="0x0009">
		<sequence>
			<sequence>
				<uuid value="0x1124" />
				<uint16 value="0x0101" />
			</sequence>
		</sequence>
	</attribute>
	<attribute id="0x000d">
		<sequence>
			<sequence>
				<sequence>
					<uuid value="0x0100" />
					<uint16 value="0x0013" />
				</sequence>
				<sequence>
					<uuid value="0x0011" />
				</sequence>
			</sequence>
		</sequence>
	</attribute>
	<attribute id="0x0100">
		<text value="Wireless Gamepad" />
	</attribute>
	<attribute id="0x0101">
		<text value="Gamepad" />
	</attribute>
	<attribute id="0x0102">
		<text value="Nintendo" />
	</attribute>
	<attribute id="0x0200">
		<uint16 value="0x0100" />
	</attribute>
	<attribute id="0x0201">
		<uint16 value="0x0111" />
	</attribute>
	<attribute id="0x0202">
		<uint8 value="0x08" />
	</attribute>
	<attribute id="0x0203">
		<uint8 value="0x33" />
	</attribute>
	<attribute id="0x0204">
		<boolean value="true" />
	</attribute>
	<attribute id="0x0205">
		<boolean value="true" />
	</attribute>
	<attribute id="0x0206">
		<sequence>
			<sequence>
				<uint8 value="0x22" />
				<text encoding="hex" value="` + hidDescriptor + `" />
			</sequence>
		</sequence>
	</attribute>
	<attribute id="0x0207">
		<sequence>
			<sequence>
				<uint16 value="0x0409" />
				<uint16 value="0x0100" />
			</sequence>
		</sequence>
	</attribute>
	<attribute id="0x0209">
		<boolean value="true" />
	</attribute>
	<attribute id="0x020a">
		<boolean value="true" />
	</attribute>
	<attribute id="0x020c">
		<uint16 value="0x0c80" />
	</attribute>
	<attribute id="0x020d">
		<boolean value="false" />
	</attribute>
	<attribute id="0x020e">
		<boolean value="true" />
	</attribute>
</record>
`
