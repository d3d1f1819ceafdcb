package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/hyperlicked/chaincore/pkg/chain"
	"github.com/hyperlicked/chaincore/pkg/protocol"
)

const (
	topicBlocks       = "chaincore-blocks"
	topicTransactions = "chaincore-txs"
)

// Libp2pNet gossips blocks and transactions over two GossipSub topics.
// Grounded on the teacher's Libp2pNet (pkg/p2p/libp2pnet.go):
// libp2p host + GossipSub setup, bootstrap dialing, and topic
// join/subscribe are kept as-is; the HotStuff propose/prepare/vote
// machinery (leader-addressed unicast votes, a quorum collector with
// a reactive wake channel) is dropped since DPoS has no quorum
// certificate — a witness's signed block is either accepted by
// pkg/forkdb's fork-choice rule or it isn't.
type Libp2pNet struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	tBlocks, tTxs     *pubsub.Topic
	subBlocks, subTxs *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	SelfID     NodeID
	Logger     *zap.SugaredLogger
}

func NewLibp2pNet(ctx context.Context, cfg Libp2pConfig) (*Libp2pNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	net := &Libp2pNet{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if err := net.joinTopics(ctx); err != nil {
		return nil, err
	}

	go net.handleBlocks(ctx)
	go net.handleTransactions(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return net, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (n *Libp2pNet) joinTopics(ctx context.Context) error {
	var err error
	if n.tBlocks, err = n.ps.Join(topicBlocks); err != nil {
		return err
	}
	if n.tTxs, err = n.ps.Join(topicTransactions); err != nil {
		return err
	}
	if n.subBlocks, err = n.tBlocks.Subscribe(); err != nil {
		return err
	}
	if n.subTxs, err = n.tTxs.Subscribe(); err != nil {
		return err
	}
	return nil
}

func (n *Libp2pNet) SetHandlers(h Handlers) {
	n.muH.Lock()
	n.handlers = h
	n.muH.Unlock()
}

func (n *Libp2pNet) Host() host.Host { return n.h }

func (n *Libp2pNet) BroadcastBlock(b *chain.Block) error {
	data, err := encodeBlock(b)
	if err != nil {
		return err
	}
	return n.tBlocks.Publish(context.Background(), data)
}

func (n *Libp2pNet) BroadcastTransaction(tx *protocol.Transaction) error {
	data, err := encodeTransaction(tx)
	if err != nil {
		return err
	}
	return n.tTxs.Publish(context.Background(), data)
}

func (n *Libp2pNet) handleBlocks(ctx context.Context) {
	for {
		msg, err := n.subBlocks.Next(ctx)
		if err != nil {
			return
		}
		b, err := decodeBlock(msg.Data)
		if err != nil {
			if n.log != nil {
				n.log.Warnw("gossip_block_decode_failed", "err", err)
			}
			continue
		}
		n.muH.RLock()
		h := n.handlers
		n.muH.RUnlock()
		if h.OnBlock != nil {
			h.OnBlock(b)
		}
	}
}

func (n *Libp2pNet) handleTransactions(ctx context.Context) {
	for {
		msg, err := n.subTxs.Next(ctx)
		if err != nil {
			return
		}
		tx, err := decodeTransaction(msg.Data)
		if err != nil {
			if n.log != nil {
				n.log.Warnw("gossip_tx_decode_failed", "err", err)
			}
			continue
		}
		n.muH.RLock()
		h := n.handlers
		n.muH.RUnlock()
		if h.OnTransaction != nil {
			h.OnTransaction(tx)
		}
	}
}
