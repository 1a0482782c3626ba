package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/roomchat/internal/log"
)

// TestPageHandler serves a bare HTML page for poking at the room protocol
// from a browser: create a room, join it, and exchange messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		log.L().Warn().Err(err).Msg("error writing HTML response")
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Roomchat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        .self { color: blue; }
        .other { color: green; }
        .system { color: gray; font-style: italic; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>Roomchat Test</h1>

    <div>
        <input type="text" id="roomName" placeholder="Room name">
        <button onclick="createRoom()">Create room</button>
    </div>
    <div>
        <input type="text" id="roomId" placeholder="Room id">
        <input type="text" id="nickname" placeholder="Nickname">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="status" class="system"></div>
    <div id="messages"></div>

    <script>
        let ws = null;
        let nickname = '';
        const messagesDiv = document.getElementById('messages');

        function addLine(text, cls) {
            const el = document.createElement('div');
            el.className = cls;
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function emit(event, data) {
            ws.send(JSON.stringify({ event: event, data: data }));
        }

        function showMessage(m) {
            const mine = m.senderNickname === nickname;
            const body = m.type === 'image' ? '[image]' : m.content;
            addLine((mine ? 'You' : m.senderNickname) + ': ' + body, mine ? 'self' : 'other');
        }

        async function createRoom() {
            const res = await fetch('/api/create-room', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ name: document.getElementById('roomName').value })
            });
            const room = await res.json();
            document.getElementById('roomId').value = room.roomId;
            addLine('Created room ' + room.name + ' (' + room.roomId + ')', 'system');
        }

        function joinRoom() {
            const roomId = document.getElementById('roomId').value.trim();
            nickname = document.getElementById('nickname').value.trim();
            if (ws) { ws.close(); }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?roomId=' + encodeURIComponent(roomId));
            ws.onopen = function() { emit('join-room', { roomId: roomId, nickname: nickname }); };
            ws.onclose = function() { addLine('Connection closed', 'system'); ws = null; };
            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                const d = frame.data || {};
                switch (frame.event) {
                case 'room-history':
                    document.getElementById('status').textContent = d.roomName + ' - ' + d.count + ' online';
                    d.messages.forEach(showMessage);
                    break;
                case 'user-joined':
                    addLine(d.nickname + ' joined (' + d.count + ' online)', 'system');
                    break;
                case 'user-left':
                    addLine(d.nickname + ' left (' + d.count + ' online)', 'system');
                    break;
                case 'new-message':
                    showMessage(d);
                    break;
                case 'error':
                    addLine(d.message, 'error');
                    break;
                }
            };
        }

        function leaveRoom() {
            if (ws) { emit('leave-room', { roomId: document.getElementById('roomId').value.trim() }); }
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const content = input.value.trim();
            if (content && ws && ws.readyState === WebSocket.OPEN) {
                emit('send-message', { roomId: document.getElementById('roomId').value.trim(), content: content, type: 'text' });
                input.value = '';
            }
        }
    </script>
</body>
</html>`
