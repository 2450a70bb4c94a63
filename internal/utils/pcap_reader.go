// Package utils 提供抓包解析等辅助工具
package utils

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// PCAPReader 从抓包文件中提取语音会话的WebSocket音频帧
type PCAPReader struct {
	filename string
}

// NewPCAPReader 创建新的抓包读取器
func NewPCAPReader(filename string) *PCAPReader {
	return &PCAPReader{filename: filename}
}

// ReadAudioFrames 提取抓包中所有WebSocket二进制帧的负载，
// 用于离线回放语音会话
func (r *PCAPReader) ReadAudioFrames() ([][]byte, error) {
	handle, err := pcap.OpenOffline(r.filename)
	if err != nil {
		return nil, fmt.Errorf("打开抓包文件失败: %v", err)
	}
	defer handle.Close()

	var frames [][]byte
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		tcpLayer := packet.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			continue
		}
		tcp, ok := tcpLayer.(*layers.TCP)
		if !ok || len(tcp.Payload) == 0 {
			continue
		}
		frames = append(frames, extractBinaryFrames(tcp.Payload)...)
	}

	return frames, nil
}

// extractBinaryFrames 在TCP负载中扫描WebSocket二进制帧（opcode 0x2）
// 并返回解掩码后的负载
func extractBinaryFrames(data []byte) [][]byte {
	var frames [][]byte

	for i := 0; i+2 <= len(data); i++ {
		// FIN位为1、RSV位为0、opcode为二进制帧
		if data[i]&0x80 == 0 || data[i]&0x70 != 0 || data[i]&0x0F != 0x2 {
			continue
		}

		payloadLen := int(data[i+1] & 0x7F)
		headerLen := 2

		// 扩展长度
		if payloadLen == 126 {
			if i+4 > len(data) {
				continue
			}
			payloadLen = int(data[i+2])<<8 | int(data[i+3])
			headerLen += 2
		} else if payloadLen == 127 {
			if i+10 > len(data) {
				continue
			}
			payloadLen = 0
			for j := 0; j < 8; j++ {
				payloadLen = payloadLen<<8 | int(data[i+2+j])
			}
			headerLen += 8
		}
		if payloadLen <= 0 || payloadLen > 1<<20 {
			continue
		}

		masked := data[i+1]&0x80 != 0
		if masked {
			headerLen += 4
		}
		if i+headerLen+payloadLen > len(data) {
			continue
		}

		frame := make([]byte, payloadLen)
		copy(frame, data[i+headerLen:i+headerLen+payloadLen])
		if masked {
			maskKey := data[i+headerLen-4 : i+headerLen]
			for j := range frame {
				frame[j] ^= maskKey[j%4]
			}
		}

		frames = append(frames, frame)
		i += headerLen + payloadLen - 1
	}

	return frames
}
