package relay

import "time"

// roomCapacity is the hard membership limit. The whole protocol leans on
// rooms having exactly two slots: "the other member" is well defined and
// no recipient addressing is needed.
const roomCapacity = 2

// Room is an ephemeral 2-party rendezvous, keyed by a short code. Rooms
// are created implicitly by the first join and never survive a relay
// restart.
type Room struct {
	Code       string
	Members    []*Client
	CreatedAt  time.Time
	LastActive time.Time
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:       code,
		Members:    make([]*Client, 0, roomCapacity),
		CreatedAt:  now,
		LastActive: now,
	}
}

// add appends a member, preserving join order. It reports false when the
// room is already full, leaving existing members untouched.
func (r *Room) add(c *Client) bool {
	if len(r.Members) >= roomCapacity {
		return false
	}
	r.Members = append(r.Members, c)
	return true
}

// remove drops a member if present.
func (r *Room) remove(c *Client) {
	for i, m := range r.Members {
		if m == c {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return
		}
	}
}

// other returns the member that is not c, or nil if the peer has not
// arrived (or already left).
func (r *Room) other(c *Client) *Client {
	for _, m := range r.Members {
		if m != c {
			return m
		}
	}
	return nil
}

func (r *Room) empty() bool {
	return len(r.Members) == 0
}

// touch records activity for idle-room collection.
func (r *Room) touch(now time.Time) {
	r.LastActive = now
}
