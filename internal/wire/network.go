package wire

// ProtocolVersion is the version number this peer advertises in its
// version message.
const ProtocolVersion int32 = 60002

// Service flags advertised in the version message.
const (
	ServiceNone        uint64 = 0
	ServiceNodeNetwork uint64 = 1
)

// Params describes the network parameters of one chain in the
// Bitcoin-derived family: the magic bytes that open every envelope and the
// default TCP port peers listen on.
type Params struct {
	Name        string
	Magic       uint32
	DefaultPort uint16
}

// Recognized networks.
var (
	Bitcoin          = Params{Name: "bitcoin", Magic: 0xD9B4BEF9, DefaultPort: 8333}
	BitcoinTestnet   = Params{Name: "bitcoin_testnet", Magic: 0xDAB5BFFA, DefaultPort: 18333}
	BitcoinTestnet3  = Params{Name: "bitcoin_testnet3", Magic: 0x0709110B, DefaultPort: 18333}
	Namecoin         = Params{Name: "namecoin", Magic: 0xFEB4BEF9, DefaultPort: 8334}
	Litecoin         = Params{Name: "litecoin", Magic: 0xDBB6C0FB, DefaultPort: 9333}
	LitecoinTestnet  = Params{Name: "litecoin_testnet", Magic: 0xDCB7C1FC, DefaultPort: 19333}
)

// byName indexes the network table for config lookups.
var byName = map[string]Params{
	Bitcoin.Name:         Bitcoin,
	BitcoinTestnet.Name:  BitcoinTestnet,
	BitcoinTestnet3.Name: BitcoinTestnet3,
	Namecoin.Name:        Namecoin,
	Litecoin.Name:        Litecoin,
	LitecoinTestnet.Name: LitecoinTestnet,
}

// ParamsByName looks up network parameters by name. ok is
// false for an unrecognized name.
func ParamsByName(name string) (Params, bool) {
	p, ok := byName[name]
	return p, ok
}
