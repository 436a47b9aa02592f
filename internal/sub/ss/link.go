package ss

// PluginOpt is one key=value of the SIP003 plugin query parameter, kept in
// the order it appeared.
type PluginOpt struct {
	Key   string
	Value string
}

// Link is one decoded ss:// URI. Name comes from the #fragment and may be
// empty or repeated across a subscription.
type Link struct {
	Type     string
	Name     string
	Server   string
	Port     int
	Cipher   string
	Password string

	PluginName string
	PluginOpts []PluginOpt
}
