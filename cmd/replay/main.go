// 语音会话回放工具：从抓包文件中提取WebSocket音频帧，
// 重新发送到运行中的语音通道，用于排查识别与合成问题。
package main

import (
	"flag"
	"log"
	"time"

	"ai_assistant_mini/internal/utils"

	"github.com/gorilla/websocket"
)

func main() {
	pcapFile := flag.String("pcap", "", "抓包文件路径")
	serverURL := flag.String("server", "ws://127.0.0.1:8000/ws/voice", "语音通道地址")
	interval := flag.Duration("interval", 200*time.Millisecond, "帧发送间隔")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("必须通过 -pcap 指定抓包文件")
	}

	reader := utils.NewPCAPReader(*pcapFile)
	frames, err := reader.ReadAudioFrames()
	if err != nil {
		log.Fatalf("解析抓包文件失败: %v", err)
	}
	if len(frames) == 0 {
		log.Fatal("抓包文件中没有音频帧")
	}
	log.Printf("提取到 %d 个音频帧", len(frames))

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("连接语音通道失败: %v", err)
	}
	defer conn.Close()

	// 回显服务端响应
	go func() {
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.TextMessage {
				log.Printf("收到回复: %s", message)
			} else {
				log.Printf("收到音频: %d 字节", len(message))
			}
		}
	}()

	for i, frame := range frames {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Fatalf("发送第 %d 帧失败: %v", i+1, err)
		}
		time.Sleep(*interval)
	}

	// 等待最后一轮回复
	time.Sleep(2 * time.Second)
}
