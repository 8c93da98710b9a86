package protocol

import "time"

// CltManual drives no lifecycle automation: on_connect is a no-op and
// is_connected always reports true. The application is expected to send
// and receive the login frames itself. Useful for interactive debugging
// and tests that want to poke the wire directly.
type CltManual struct{}

func NewCltManual() *CltManual { return &CltManual{} }

func (*CltManual) ConfHeartBeatInterval() time.Duration { return 0 }
func (*CltManual) OnConnect(Conn) error                 { return nil }
func (*CltManual) OnRecv([]byte)                        {}
func (*CltManual) OnSent([]byte)                        {}
func (*CltManual) SendHeartBeat(Conn) error              { return nil }
func (*CltManual) IsConnected() bool                     { return true }

// SvcManual is the server-side mirror of CltManual.
type SvcManual struct{}

func NewSvcManual() *SvcManual { return &SvcManual{} }

func (*SvcManual) ConfHeartBeatInterval() time.Duration { return 0 }
func (*SvcManual) OnConnect(Conn) error                 { return nil }
func (*SvcManual) OnRecv([]byte)                        {}
func (*SvcManual) OnSent([]byte)                        {}
func (*SvcManual) SendHeartBeat(Conn) error              { return nil }
func (*SvcManual) IsConnected() bool                     { return true }
func (*SvcManual) OnDisconnect() (time.Duration, []byte) { return 0, nil }
