package socket

// Simple JSON protocol for the cache daemon over a Unix domain socket.
// Each request gets exactly one response; a connection may carry many pairs.

const (
	OpGet         = "get"
	OpSet         = "set"
	OpDelete      = "delete"
	OpHas         = "has"
	OpClear       = "clear"
	OpGetMulti    = "get_multi"
	OpSetMulti    = "set_multi"
	OpDeleteMulti = "delete_multi"
)

type Item struct {
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

type Request struct {
	Op         string   `json:"op"`
	Key        string   `json:"key,omitempty"`
	Keys       []string `json:"keys,omitempty"`
	Value      []byte   `json:"value,omitempty"`
	Items      []Item   `json:"items,omitempty"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"` // 0 = never expires
}

type Response struct {
	OK    bool   `json:"ok"`
	Found bool   `json:"found,omitempty"` // get and has
	Value []byte `json:"value,omitempty"`
	Items []Item `json:"items,omitempty"` // get_multi: found keys only
	Error string `json:"error,omitempty"`
}
