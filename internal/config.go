package internal

import (
	"time"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	UploadDir      string `env:"UPLOAD_DIR,required=true"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	BufferSize           int `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`

	PageSize       int           `env:"PAGE_SIZE,default=30"`
	DeepLinkWindow time.Duration `env:"DEEP_LINK_WINDOW,default=10m"`

	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`

	OwnerName        string `env:"OWNER_NAME,required=true"`
	PublicRoomSuffix string `env:"PUBLIC_ROOM_SUFFIX,default=-general"`
	AuthSecret       string `env:"AUTH_SECRET,required=true"`
}
