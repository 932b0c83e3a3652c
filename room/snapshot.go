package room

// Snapshot 是发送给房间内所有连接的房间状态投影
type Snapshot struct {
	ID           string           `json:"id"`
	CreatedAt    int64            `json:"createdAt"`
	Started      bool             `json:"started"`
	Config       Config           `json:"config"`
	TurnHolderID *string          `json:"turnHolderId"`
	Players      []PlayerSnapshot `json:"players"`
	Weighted     *Weighted        `json:"weighted"`
}

type PlayerSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Pos    int    `json:"pos"`
	IsHost bool   `json:"isHost"`
}

// Snapshot must be called with the room locked.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.UnixMilli(),
		Started:   r.Started(),
		Config:    r.Config,
		Players:   make([]PlayerSnapshot, 0, len(r.Order)),
	}

	if holder, ok := r.TurnHolder(); ok {
		s.TurnHolderID = &holder
	}

	for _, id := range r.Order {
		p := r.Players[id]
		s.Players = append(s.Players, PlayerSnapshot{
			ID:     p.ID,
			Name:   p.Name,
			Pos:    p.Pos,
			IsHost: p.IsHost,
		})
	}

	if r.Config.Mode == ModeWeighted {
		w := r.Weighted
		s.Weighted = &w
	}
	return s
}
