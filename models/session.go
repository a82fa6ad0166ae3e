package models

import "time"

// Session is one group decision round, joined through a shareable code
type Session struct {
	ID                string     `gorm:"primaryKey;size:36" dynamodbav:"sessionId" json:"id"`                     // ✅ Partition Key
	Code              string     `gorm:"uniqueIndex;size:6;not null" dynamodbav:"code" json:"code"`                // 6-char join code, immutable
	HostUserID        string     `gorm:"size:64;not null" dynamodbav:"hostUserId" json:"hostUserId"`              // Only the host can end
	Name              string     `gorm:"size:120;not null" dynamodbav:"name" json:"name"`                          // Display name
	SwipeMode         SwipeMode  `gorm:"size:20;not null" dynamodbav:"swipeMode" json:"swipeMode"`                 // ALL_MUST_AGREE or THRESHOLD
	AgreeThreshold    *int       `dynamodbav:"agreeThreshold,omitempty" json:"agreeThreshold,omitempty"`           // Explicit THRESHOLD quorum
	DefaultTravelMode TravelMode `gorm:"size:10;not null" dynamodbav:"defaultTravelMode" json:"defaultTravelMode"` // Deck init fallback
	DefaultMaxMinutes *int       `dynamodbav:"defaultMaxMinutes,omitempty" json:"defaultMaxMinutes,omitempty"`     // Deck init fallback
	IsActive          bool       `gorm:"not null" dynamodbav:"isActive" json:"isActive"`                           // false once ended
	CreatedAt         time.Time  `dynamodbav:"createdAt" json:"createdAt"`
	EndedAt           *time.Time `dynamodbav:"endedAt,omitempty" json:"endedAt,omitempty"`

	Members []SessionMember `gorm:"foreignKey:SessionID" dynamodbav:"-" json:"members,omitempty"` // Loaded for state views only
}

// SessionMember is a user's membership in a session. Rows are never deleted;
// leaving only stamps LeftAt so swipe history stays attributable.
type SessionMember struct {
	SessionID string     `gorm:"primaryKey;size:36" dynamodbav:"sessionId" json:"sessionId"` // ✅ Partition Key
	UserID    string     `gorm:"primaryKey;size:64" dynamodbav:"userId" json:"userId"`       // ✅ Sort Key
	IsReady   bool       `gorm:"not null" dynamodbav:"isReady" json:"isReady"`
	JoinedAt  time.Time  `dynamodbav:"joinedAt" json:"joinedAt"`
	LeftAt    *time.Time `gorm:"index" dynamodbav:"leftAt,omitempty" json:"leftAt,omitempty"`
}

// Active reports whether the member has not left.
func (m SessionMember) Active() bool {
	return m.LeftAt == nil
}

// CountActive returns how many members have not left.
func CountActive(members []SessionMember) int {
	n := 0
	for _, m := range members {
		if m.Active() {
			n++
		}
	}
	return n
}

// SessionCode guards join code uniqueness in DynamoDB
type SessionCode struct {
	Code      string `dynamodbav:"code"` // ✅ Partition Key
	SessionID string `dynamodbav:"sessionId"`
}

// SessionState is the full view a member re-fetches after a session:update event
type SessionState struct {
	Session
	ActiveMemberCount int `json:"activeMemberCount"`
}
