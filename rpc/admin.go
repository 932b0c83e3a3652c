package rpc

import (
	"context"
	"errors"

	"github.com/wfunc/hexarace/models"
	"github.com/wfunc/hexarace/persistence"
	"github.com/wfunc/hexarace/room"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const adminServiceName = "hexarace.admin.v1.Admin"

type ListRoomsRequest struct{}

type RoomSummary struct {
	ID        string    `json:"id"`
	Mode      room.Mode `json:"mode"`
	Started   bool      `json:"started"`
	Players   int       `json:"players"`
	Rolls     int       `json:"rolls"`
	CreatedAt int64     `json:"createdAt"`
}

type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
}

type PlayerStatsRequest struct {
	Name string `json:"name"`
}

// AdminServer 是 hexarace.admin.v1.Admin 的服务端接口
type AdminServer interface {
	ListRooms(context.Context, *ListRoomsRequest) (*ListRoomsResponse, error)
	GetRoom(context.Context, *GetRoomRequest) (*room.Snapshot, error)
	PlayerStats(context.Context, *PlayerStatsRequest) (*models.PlayerStats, error)
}

// StatsSource is satisfied by services.MatchService.
type StatsSource interface {
	PlayerStats(ctx context.Context, name string) (*models.PlayerStats, error)
}

// AdminService 只读地暴露房间表和比赛统计
type AdminService struct {
	rooms *room.Manager
	stats StatsSource
}

func NewAdminService(rooms *room.Manager, stats StatsSource) *AdminService {
	return &AdminService{rooms: rooms, stats: stats}
}

func (s *AdminService) ListRooms(ctx context.Context, _ *ListRoomsRequest) (*ListRoomsResponse, error) {
	resp := &ListRoomsResponse{Rooms: []RoomSummary{}}
	for _, r := range s.rooms.List() {
		r.Lock()
		if !r.Closed() {
			resp.Rooms = append(resp.Rooms, RoomSummary{
				ID:        r.ID,
				Mode:      r.Config.Mode,
				Started:   r.Started(),
				Players:   len(r.Order),
				Rolls:     r.Rolls(),
				CreatedAt: r.CreatedAt.UnixMilli(),
			})
		}
		r.Unlock()
	}
	return resp, nil
}

func (s *AdminService) GetRoom(ctx context.Context, req *GetRoomRequest) (*room.Snapshot, error) {
	if req.RoomID == "" {
		return nil, status.Error(codes.InvalidArgument, "roomId is required")
	}
	r, ok := s.rooms.Get(req.RoomID)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "room %q not found", req.RoomID)
	}

	r.Lock()
	defer r.Unlock()
	if r.Closed() {
		return nil, status.Errorf(codes.NotFound, "room %q not found", req.RoomID)
	}
	snap := r.Snapshot()
	return &snap, nil
}

func (s *AdminService) PlayerStats(ctx context.Context, req *PlayerStatsRequest) (*models.PlayerStats, error) {
	if req.Name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	stats, err := s.stats.PlayerStats(ctx, req.Name)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, status.Errorf(codes.NotFound, "no matches for %q", req.Name)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return stats, nil
}

func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: adminServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "GetRoom", Handler: getRoomHandler},
		{MethodName: "PlayerStats", Handler: playerStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hexarace/admin",
}

func unary[Req any, Resp any](method string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + adminServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	listRoomsHandler   = unary("ListRooms", AdminServer.ListRooms)
	getRoomHandler     = unary("GetRoom", AdminServer.GetRoom)
	playerStatsHandler = unary("PlayerStats", AdminServer.PlayerStats)
)

// AdminClient 调用 hexarace.admin.v1.Admin
type AdminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) *AdminClient {
	return &AdminClient{cc: cc}
}

func (c *AdminClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+adminServiceName+"/"+method, in, out, grpc.CallContentSubtype(codecName))
}

func (c *AdminClient) ListRooms(ctx context.Context, in *ListRoomsRequest) (*ListRoomsResponse, error) {
	out := new(ListRoomsResponse)
	if err := c.invoke(ctx, "ListRooms", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) GetRoom(ctx context.Context, in *GetRoomRequest) (*room.Snapshot, error) {
	out := new(room.Snapshot)
	if err := c.invoke(ctx, "GetRoom", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) PlayerStats(ctx context.Context, in *PlayerStatsRequest) (*models.PlayerStats, error) {
	out := new(models.PlayerStats)
	if err := c.invoke(ctx, "PlayerStats", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
