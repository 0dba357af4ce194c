package client

import (
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	ufsrpc "ufsvault/pkg/api/ufsrpc/v1"
)

// MaxMsgSize 与服务端保持一致
const MaxMsgSize = 64 << 20

// Client 封装了与 ufsvault 服务端的连接
type Client struct {
	conn *grpc.ClientConn

	Data ufsrpc.DataServiceClient
	Meta ufsrpc.MetaServiceClient
}

// New 创建客户端，连接在后台建立，网络不通不会在这里报错
func New(addr string, extra ...grpc.DialOption) (*Client, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMsgSize),
			grpc.MaxCallSendMsgSize(MaxMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(addr, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}

	return &Client{
		conn: conn,
		Data: ufsrpc.NewDataServiceClient(conn),
		Meta: ufsrpc.NewMetaServiceClient(conn),
	}, nil
}

// Conn 暴露底层连接 (健康检查等)
func (c *Client) Conn() *grpc.ClientConn { return c.conn }

// Close 关闭底层连接
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
