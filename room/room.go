// room/room.go
package room

import (
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wfunc/hexarace/state"
)

// Mode 是游戏变体
type Mode string

const (
	ModeUniform  Mode = "race-uniform"
	ModeWeighted Mode = "race-weighted"
)

// ParseMode maps anything other than the weighted variant to the uniform one.
func ParseMode(s string) Mode {
	if Mode(s) == ModeWeighted {
		return ModeWeighted
	}
	return ModeUniform
}

const (
	MaxNameLength   = 18
	DefaultCircles  = 20
	MinPlayers      = 2
	MaxPlayersLimit = 10
	MaxGiftStacks   = 3
	GiftShiftBp     = 300
	TotalBp         = 10000
	DieSides        = 6
)

// ProbsBp holds the outcome weights of faces 1..6 in basis points.
type ProbsBp [DieSides]int

func DefaultProbs() ProbsBp {
	return ProbsBp{1667, 1667, 1667, 1667, 1666, 1666}
}

type Config struct {
	Mode       Mode `json:"mode"`
	Circles    int  `json:"circles"`
	MaxPlayers int  `json:"maxPlayers"`
	Anonymous  bool `json:"anonymous"`
}

type Weighted struct {
	GiftStacks int     `json:"giftStacks"`
	ProbsBp    ProbsBp `json:"probsBp"`
}

type Player struct {
	ID     string
	ConnID string
	Name   string
	Pos    int
	IsHost bool
}

// Room 是一局比赛的权威状态。除 ID/CreatedAt 外的所有字段都必须在持有 Lock 时访问。
type Room struct {
	ID        string
	CreatedAt time.Time
	Players   map[string]*Player // playerID -> player
	Order     []string           // playerIDs in turn order
	TurnIndex int
	Config    Config
	Weighted  Weighted

	phase     *state.Machine
	startedAt time.Time
	rolls     int
	closed    bool
	mu        sync.Mutex
}

// NewRoom 创建一个使用默认配置的空房间
func NewRoom(id string) *Room {
	r := &Room{
		ID:        id,
		CreatedAt: time.Now(),
		Players:   make(map[string]*Player),
		Config: Config{
			Mode:       ModeUniform,
			Circles:    DefaultCircles,
			MaxPlayers: MaxPlayersLimit,
		},
		Weighted: Weighted{ProbsBp: DefaultProbs()},
		phase:    state.NewMachine(state.NotStarted),
	}
	r.phase.AddTransition(state.NotStarted, state.Started, func() error {
		if len(r.Players) < MinPlayers {
			return CodeNeedTwo
		}
		return nil
	})
	return r
}

func (r *Room) Lock()   { r.mu.Lock() }
func (r *Room) Unlock() { r.mu.Unlock() }

// Closed reports whether the room was drained and dropped from its manager.
func (r *Room) Closed() bool { return r.closed }

func (r *Room) Started() bool { return r.phase.Is(state.Started) }

func (r *Room) Phase() state.Phase { return r.phase.Current() }

func (r *Room) StartedAt() time.Time { return r.startedAt }

func (r *Room) Rolls() int { return r.rolls }

func (r *Room) Has(playerID string) bool {
	_, ok := r.Players[playerID]
	return ok
}

func (r *Room) IsHost(playerID string) bool {
	p, ok := r.Players[playerID]
	return ok && p.IsHost
}

func (r *Room) TurnHolder() (string, bool) {
	if len(r.Order) == 0 {
		return "", false
	}
	return r.Order[r.TurnIndex], true
}

// Winner returns the first player in turn order that reached the goal.
func (r *Room) Winner() (string, bool) {
	for _, id := range r.Order {
		if r.Players[id].Pos >= r.Config.Circles {
			return id, true
		}
	}
	return "", false
}

// ConnIDs returns the connections of every player, in turn order.
func (r *Room) ConnIDs() []string {
	ids := make([]string, 0, len(r.Order))
	for _, id := range r.Order {
		ids = append(ids, r.Players[id].ConnID)
	}
	return ids
}

type JoinRequest struct {
	PlayerID string
	ConnID   string
	Name     string
	Mode     Mode
	Circles  Number
}

// Join 添加玩家；第一个加入的玩家成为房主并决定初始模式与长度
func (r *Room) Join(req JoinRequest) error {
	if p, exists := r.Players[req.PlayerID]; exists {
		p.ConnID = req.ConnID
		if name := cleanName(req.Name); name != "" {
			p.Name = name
		}
		return nil
	}

	if len(r.Players) >= r.Config.MaxPlayers {
		return CodeRoomFull
	}

	first := len(r.Order) == 0
	name := cleanName(req.Name)
	if name == "" {
		name = defaultName(req.PlayerID)
	}

	r.Players[req.PlayerID] = &Player{
		ID:     req.PlayerID,
		ConnID: req.ConnID,
		Name:   name,
		IsHost: first,
	}
	r.Order = append(r.Order, req.PlayerID)

	if first {
		r.TurnIndex = 0
		if !r.Started() {
			mode := ParseMode(string(req.Mode))
			r.Config = Config{
				Mode:       mode,
				Circles:    ClampCircles(mode, req.Circles),
				MaxPlayers: MaxPlayersLimit,
			}
		}
	}
	return nil
}

// Leave 移除玩家并维护房主与回合指针。返回 false 表示玩家不在房间内。
func (r *Room) Leave(playerID string) bool {
	p, exists := r.Players[playerID]
	if !exists {
		return false
	}

	idx := slices.Index(r.Order, playerID)
	delete(r.Players, playerID)
	r.Order = slices.Delete(r.Order, idx, idx+1)

	if len(r.Order) == 0 {
		r.TurnIndex = 0
		return true
	}

	if p.IsHost {
		r.Players[r.Order[0]].IsHost = true
	}
	if r.TurnIndex >= len(r.Order) {
		r.TurnIndex = 0
	}
	return true
}

func (r *Room) Empty() bool {
	return len(r.Order) == 0
}

func (r *Room) Start() error {
	if err := r.phase.ChangeState(state.Started); err != nil {
		return err
	}
	r.startedAt = time.Now()
	return nil
}

type Settings struct {
	Circles    Number
	MaxPlayers Number
	Anonymous  bool
}

func (r *Room) UpdateSettings(s Settings) error {
	if r.Started() {
		return CodeConfigLocked
	}

	r.Config.Circles = ClampCircles(r.Config.Mode, s.Circles)
	r.Config.MaxPlayers = ClampMaxPlayers(s.MaxPlayers)
	r.Config.Anonymous = s.Anonymous

	ResetPositions(r)
	return nil
}

func (r *Room) Gift() error {
	if !r.Started() {
		return CodeNotStarted
	}
	return ApplyGift(r)
}

type RollResult struct {
	By   string `json:"by"`
	Roll int    `json:"roll"`
	From int    `json:"from"`
	To   int    `json:"to"`
	Win  bool   `json:"win"`
}

// Roll moves the current turn holder. A winning roll keeps the turn pointer in place.
func (r *Room) Roll(d Dice) (RollResult, error) {
	if !r.Started() {
		return RollResult{}, CodeNotStarted
	}
	holder, ok := r.TurnHolder()
	if !ok {
		return RollResult{}, ErrNoTurnHolder
	}
	player := r.Players[holder]

	var roll int
	if r.Config.Mode == ModeWeighted {
		roll = RollWeighted(d, r.Weighted.ProbsBp)
	} else {
		roll = RollUniform(d, DieSides)
	}

	from := player.Pos
	to := min(r.Config.Circles, from+roll)
	player.Pos = to
	r.rolls++

	win := to >= r.Config.Circles
	if !win {
		NextTurn(r)
	}

	return RollResult{By: holder, Roll: roll, From: from, To: to, Win: win}, nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}

func defaultName(playerID string) string {
	prefix := playerID
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return "Player-" + prefix
}
