package rtmp

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mediabricks/rtmp-ingest/config"
	"github.com/mediabricks/rtmp-ingest/rand"
	"github.com/mediabricks/rtmp-ingest/video"
)

// SetupCallback fires when a stream's AVC sequence header has been parsed.
// The slices in setup are views into the receive buffer, valid only for the
// duration of the call.
type SetupCallback func(streamID uint32, setup SetupResult)

// VideoCallback fires for every delivered Annex-B video payload. isNewStream
// is true only for the first delivery on a stream; payload is valid only for
// the duration of the call.
type VideoCallback func(isNewStream, isKeyframe bool, streamID, timestamp uint32, payload []byte)

// Receiver is an RTMP ingest server: it accepts a single publishing client at
// a time, answers the connect sequence, and delivers the published H.264
// video as Annex-B byte stream through the callbacks. Callbacks run on the
// receiver's worker goroutine and must not call back into the receiver.
type Receiver struct {
	// Addr is the listen address; ":1935" when empty.
	Addr string
	// Logger for connection lifecycle and protocol events. A nil Logger
	// disables logging.
	Logger *zap.Logger

	OnSetup SetupCallback
	OnVideo VideoCallback

	listener *net.TCPListener
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Start binds the listener and launches the worker goroutine. It returns an
// error only for setup failures; everything after that is handled (and
// logged) by the worker.
func (r *Receiver) Start() error {
	if r.listener != nil {
		return errors.New("rtmp: receiver already started")
	}
	if r.Addr == "" {
		r.Addr = ":" + config.DefaultPort
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}

	tcpAddress, err := net.ResolveTCPAddr("tcp", r.Addr)
	if err != nil {
		return errors.Errorf("rtmp: error resolving listen address: %s", err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddress)
	if err != nil {
		return err
	}

	r.listener = listener
	r.quit = make(chan struct{})
	r.done = make(chan struct{})

	r.Logger.Info("[server] listening", zap.String("addr", listener.Addr().String()))

	go r.loop()
	return nil
}

// Stop signals the worker, waits for it to exit and releases the listener.
// It is idempotent and safe to call from any goroutine except the worker.
func (r *Receiver) Stop() {
	if r.listener == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	<-r.done
}

// ListenAddr reports the bound listen address, useful when Addr requested an
// ephemeral port.
func (r *Receiver) ListenAddr() net.Addr {
	return r.listener.Addr()
}

func (r *Receiver) terminated() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

// loop owns the listener and every client socket for the worker's lifetime.
// Accept blocks at most PollInterval so a Stop signal is observed promptly.
func (r *Receiver) loop() {
	defer close(r.done)
	defer r.listener.Close()

	for !r.terminated() {
		r.listener.SetDeadline(time.Now().Add(config.PollInterval))
		conn, err := r.listener.AcceptTCP()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			r.Logger.Error("[server] accept failed", zap.Error(err))
			continue
		}

		r.Logger.Info("[server] client connected", zap.String("remote", conn.RemoteAddr().String()))
		r.handleClient(conn)
	}
}

// handleClient drives one connection from handshake to disconnect. All
// per-connection state is scoped here and released on return.
func (r *Receiver) handleClient(conn *net.TCPConn) {
	defer conn.Close()

	logger := r.Logger.With(zap.String("connectionID", rand.GenerateUuid()))
	buffer := &RollingBuffer{}
	recv := make([]byte, config.RecvBufferSize)

	if err := r.runHandshake(conn, buffer, recv, logger); err != nil {
		logger.Info("[server] handshake failed", zap.Error(err))
		return
	}
	logger.Info("[server] handshake completed")

	client := &clientConn{
		receiver:     r,
		logger:       logger,
		conn:         conn,
		videoStreams: make(map[uint32]*videoStream),
	}
	session := NewChunkHandler(logger, buffer, client)

	// The handshake may have consumed chunk stream bytes already; drain the
	// rolling buffer before the first recv.
	if err := session.Parse(nil); err != nil {
		logger.Warn("[server] protocol error", zap.Error(err))
		return
	}

	for !r.terminated() {
		conn.SetReadDeadline(time.Now().Add(config.PollInterval))
		n, err := conn.Read(recv)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			logger.Info("[server] client disconnected", zap.Error(err))
			return
		}
		if err := session.Parse(recv[:n]); err != nil {
			logger.Warn("[server] protocol error", zap.Error(err))
			return
		}
		if client.err != nil {
			logger.Info("[server] send failed", zap.Error(client.err))
			return
		}
	}
}

// runHandshake reads C0/C1/C2 and answers with S0/S1/S2. On return the
// rolling buffer holds any bytes the client sent past the handshake.
func (r *Receiver) runHandshake(conn *net.TCPConn, buffer *RollingBuffer, recv []byte, logger *zap.Logger) error {
	handshake := &Handshake{Buffer: buffer}
	var s0s1 []byte
	sentS0S1 := false
	sentS2 := false

	for !r.terminated() {
		conn.SetReadDeadline(time.Now().Add(config.PollInterval))
		n, err := conn.Read(recv)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return errors.Wrap(err, "handshake read")
		}
		handshake.Parse(recv[:n])

		if !sentS0S1 && handshake.State.Round >= 1 {
			if handshake.State.ClientVersion != RtmpVersion3 {
				return errors.Wrapf(ErrUnsupportedRTMPVersion, "version %d", handshake.State.ClientVersion)
			}
			serverTime := uint32(time.Now().UnixNano() / int64(time.Millisecond))
			s0s1 = generateS0S1(serverTime)
			if err := send(conn, s0s1); err != nil {
				return errors.Wrap(err, "send S0S1")
			}
			sentS0S1 = true
		}

		if !sentS2 && handshake.State.Round >= 2 {
			s2 := generateS2(handshake.State.ClientTime, handshake.State.ClientRandom[:])
			if err := send(conn, s2); err != nil {
				return errors.Wrap(err, "send S2")
			}
			sentS2 = true
		}

		if handshake.State.Round >= 3 {
			if !validateC2(s0s1[1:], handshake.State.ClientEcho[:]) {
				return ErrWrongC2Message
			}
			return nil
		}
	}
	return errors.New("rtmp: shut down during handshake")
}

// videoStream is the per-message-stream video state.
type videoStream struct {
	parser *AVCCParser
	isNew  bool
}

// clientConn implements Handler for one accepted connection. A send failure
// is sticky; the drive loop checks err after every parse and tears the
// connection down.
type clientConn struct {
	receiver *Receiver
	logger   *zap.Logger
	conn     *net.TCPConn

	videoStreams map[uint32]*videoStream

	err error
}

func (c *clientConn) send(data []byte) {
	if c.err != nil {
		return
	}
	c.err = send(c.conn, data)
}

func (c *clientConn) OnNeedAck(sequenceNumber uint32) {
	c.send(generateAckMessage(sequenceNumber))
}

func (c *clientConn) OnCommand(name string, transactionID float64) {
	c.logger.Debug("[server] command received",
		zap.String("name", name),
		zap.Float64("transactionID", transactionID))

	if name == "connect" {
		c.send(generateConnectResponse(transactionID,
			config.OutWindowAckSize, config.OutPeerBandwidth, LimitDynamic, config.OutChunkSize))
		return
	}
	c.send(generateResultResponse(transactionID))
}

func (c *clientConn) OnVideo(streamID uint32, timestamp uint32, payload []byte) {
	if len(payload) == 0 {
		return
	}

	// The FLV VIDEODATA tag byte: frame type in the high nibble, codec in the low.
	frameType := video.FrameType(payload[0] >> 4)
	codec := video.Codec(payload[0] & 0x0F)

	if codec != video.H264 {
		c.logger.Debug("[server] dropping video message", zap.String("codec", codec.String()))
		return
	}
	if frameType != video.KeyFrame && frameType != video.InterFrame {
		c.logger.Debug("[server] dropping video message", zap.String("frameType", frameType.String()))
		return
	}

	stream := c.videoStreams[streamID]
	if stream == nil {
		stream = &videoStream{parser: NewAVCCParser(c.logger), isNew: true}
		c.videoStreams[streamID] = stream
	}

	stream.parser.Parse(payload[1:])

	if stream.parser.HasSetup && c.receiver.OnSetup != nil {
		c.receiver.OnSetup(streamID, stream.parser.Setup)
	}
	if len(stream.parser.Video) > 0 && c.receiver.OnVideo != nil {
		c.receiver.OnVideo(stream.isNew, frameType == video.KeyFrame, streamID, timestamp, stream.parser.Video)
		stream.isNew = false
	}
}

func send(conn net.Conn, data []byte) error {
	n, err := conn.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return ErrShortSend
	}
	return nil
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
