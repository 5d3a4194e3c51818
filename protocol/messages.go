package protocol

// 客户端 -> 服务端 消息类型
const (
	MsgPlayerUpdate = "player_update"
	MsgShoot        = "shoot"
)

// MaxMessageSize 单条入站消息的最大字节数
const MaxMessageSize = 4096

// Intent 客户端意图消息，由服务端解释后写入权威状态
// 示例：{"type":"player_update","data":{"x":120,"direction":"left"}}
//
//	{"type":"shoot"}
type Intent struct {
	Type string       `json:"type" msgpack:"type"`
	Data *PlayerPatch `json:"data,omitempty" msgpack:"data,omitempty"`
}

// PlayerPatch 玩家字段的部分更新；nil 表示客户端没有发送该字段
type PlayerPatch struct {
	X         *int    `json:"x,omitempty" msgpack:"x,omitempty"`
	Y         *int    `json:"y,omitempty" msgpack:"y,omitempty"`
	Direction *string `json:"direction,omitempty" msgpack:"direction,omitempty"`
	Health    *int    `json:"health,omitempty" msgpack:"health,omitempty"`
	Speed     *int    `json:"speed,omitempty" msgpack:"speed,omitempty"`
	Rapid     *bool   `json:"rapid,omitempty" msgpack:"rapid,omitempty"`
}

// PlayerState 广播给客户端的玩家状态
type PlayerState struct {
	ID        int    `json:"id" msgpack:"id"`
	X         int    `json:"x" msgpack:"x"`
	Y         int    `json:"y" msgpack:"y"`
	Direction string `json:"direction" msgpack:"direction"`
	Health    int    `json:"health" msgpack:"health"`
	Speed     int    `json:"speed" msgpack:"speed"`
	Rapid     bool   `json:"rapid" msgpack:"rapid"`
}

// BulletState 广播给客户端的子弹状态
type BulletState struct {
	X     int `json:"x" msgpack:"x"`
	Y     int `json:"y" msgpack:"y"`
	DX    int `json:"dx" msgpack:"dx"`
	DY    int `json:"dy" msgpack:"dy"`
	Owner int `json:"owner" msgpack:"owner"`
}

// PowerupState 广播给客户端的道具状态
type PowerupState struct {
	X    int    `json:"x" msgpack:"x"`
	Y    int    `json:"y" msgpack:"y"`
	Kind string `json:"kind" msgpack:"kind"`
}

// State 完整的世界快照（服务端 -> 客户端）
type State struct {
	Players  map[int]PlayerState `json:"players" msgpack:"players"`
	Bullets  []BulletState       `json:"bullets" msgpack:"bullets"`
	Powerups []PowerupState      `json:"powerups" msgpack:"powerups"`
}
