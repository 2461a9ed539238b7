// Package fixture holds the entity model shared by package tests.
package fixture

import (
	"time"

	"github.com/google/uuid"
)

// State is a small enum stored as a number.
type State uint8

const (
	StateNone State = iota
	StateOK
)

// SaleOrder has two navigations to the same table.
type SaleOrder struct {
	OrderID    int    `xf:",key,identity"`
	OrderNo    string
	Remark     string
	ClientName string `xf:",nomap"`
	ClientID   int
	Client     *Client `xf:",fk=ClientID"`
	HeavyBuyer *Client `xf:",fk=ClientID:ClientID"`
}

func (SaleOrder) TableName() string { return "CRM_SaleOrder" }

type Client struct {
	ClientID      int `xf:",key"`
	ClientCode    string
	ClientName    string
	Remark        string
	State         State
	ActiveDate    *time.Time
	Qty           int
	CloudServerID int
	Active        bool
	CloudServer   *CloudServer `xf:",fk=CloudServerID"`
}

func (Client) TableName() string { return "Bas_Client" }

type CloudServer struct {
	CloudServerID   int `xf:",key"`
	CloudServerCode string
	CloudServerName string
}

func (CloudServer) TableName() string { return "Sys_CloudServer" }

// ClientAccount is keyed by a composite key.
type ClientAccount struct {
	ClientID    int `xf:",key"`
	AccountID   string `xf:",key"`
	AccountCode string
	Qty         int
	Client      *Client `xf:",fk=ClientID"`
}

func (ClientAccount) TableName() string { return "Bas_ClientAccount" }

// AccountMarket hangs off ClientAccount through a composite foreign key.
type AccountMarket struct {
	MarketID      int `xf:",key"`
	ClientID      int
	AccountID     string
	MarketCode    string
	ClientAccount *ClientAccount `xf:",fk=ClientID+AccountID:ClientID+AccountID"`
}

func (AccountMarket) TableName() string { return "Bas_ClientAccountMarket" }

type Thin struct {
	ThinID   int `xf:",key"`
	ThinName string
}

func (Thin) TableName() string { return "Sys_Thin" }

type ThinIdentity struct {
	ThinID   int `xf:",key,identity"`
	ThinName string
}

func (ThinIdentity) TableName() string { return "Sys_ThinIdentity" }

// Keyless has no key column.
type Keyless struct {
	Name  string
	Value int
}

// Demo covers every literal kind.
type Demo struct {
	DemoID       int `xf:",key,identity"`
	DemoCode     string
	DemoName     *string
	DemoBool     bool
	DemoByte     uint8
	DemoDateTime time.Time
	DemoDecimal  float64
	DemoReal     float32
	DemoGUID     uuid.UUID
	DemoShort    int16
	DemoLong     int64
	DemoNullable *int
	DemoBytes    []byte
}

func (Demo) TableName() string { return "Sys_Demo" }

// ClientSummary is a projection target that is not a table.
type ClientSummary struct {
	ClientID   int
	ClientName string
	Total      int
	Server     *CloudServer
}
