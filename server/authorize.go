package server

import (
	"errors"

	"github.com/wfunc/hexarace/network"
	"github.com/wfunc/hexarace/room"
)

// 以下错误只记录日志，不回复客户端
var (
	errMalformed    = errors.New("malformed payload")
	errUnknownRoom  = errors.New("unknown room")
	errNotMember    = errors.New("not a member of the room")
	errNotHost      = errors.New("host only")
	errNotTurn      = errors.New("not the turn holder")
	errWrongPhase   = errors.New("not allowed in the current phase")
	errGameOver     = errors.New("race already won")
	errRateLimited  = errors.New("rate limited")
	errUnknownEvent = errors.New("unknown event")
)

type authLevel int

const (
	authMember authLevel = iota
	authHost
	authTurn
)

type phaseRule int

const (
	anyPhase phaseRule = iota
	beforeStart
	afterStart
)

// route 描述一个房间事件的前置条件。phaseCode 为空时阶段不符静默丢弃。
type route struct {
	auth         authLevel
	phase        phaseRule
	phaseCode    room.Code
	dropAfterWin bool
}

var routes = map[uint16]route{
	network.MsgTypeLeaveRoom:    {auth: authMember},
	network.MsgTypeGameStart:    {auth: authHost, phase: beforeStart},
	network.MsgTypeGameSettings: {auth: authHost, phase: beforeStart, phaseCode: room.CodeConfigLocked},
	network.MsgTypeGameRoll:     {auth: authTurn, phase: afterStart, phaseCode: room.CodeNotStarted, dropAfterWin: true},
	network.MsgTypeGameGift:     {auth: authTurn, phase: afterStart, phaseCode: room.CodeNotStarted, dropAfterWin: true},
}

// check runs membership, authorization and phase gating in that order.
// Must be called with the room locked.
func (rt route) check(r *room.Room, playerID string) error {
	if !r.Has(playerID) {
		return errNotMember
	}

	switch rt.auth {
	case authHost:
		if !r.IsHost(playerID) {
			return errNotHost
		}
	case authTurn:
		if holder, ok := r.TurnHolder(); !ok || holder != playerID {
			return errNotTurn
		}
	}

	var phaseOK bool
	switch rt.phase {
	case beforeStart:
		phaseOK = !r.Started()
	case afterStart:
		phaseOK = r.Started()
	default:
		phaseOK = true
	}
	if !phaseOK {
		if rt.phaseCode != "" {
			return rt.phaseCode
		}
		return errWrongPhase
	}

	if rt.dropAfterWin {
		if _, won := r.Winner(); won {
			return errGameOver
		}
	}
	return nil
}
