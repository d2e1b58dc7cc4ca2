package server

// avoid any packaging by including the dashboard html as a variable
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <meta charset="UTF-8">
    <title>Forum Bot</title>
    <style>
        body { font-family: sans-serif; margin: 1em; background: #f5f5f5; }
        section { background: #fff; border: 1px solid #ddd; border-radius: 4px; padding: 1em; margin-bottom: 1em; }
        h2 { margin-top: 0; font-size: 1em; color: #333; }
        button { margin-right: .5em; padding: .4em 1em; }
        input { padding: .4em; margin-right: .5em; }
        #status td { padding: .1em .8em .1em 0; }
        #status .err { color: #b00; }
        canvas { width: 100%; border: gray dotted 1px; display: block; }
        pre { max-height: 16em; overflow-y: auto; background: #111; color: #ddd; padding: .5em; font-size: .8em; }
    </style>
</head>
<body>
    <section>
        <h2>Status</h2>
        <table id="status"></table>
    </section>
    <section>
        <h2>Controls</h2>
        <input id="username" type="text" placeholder="username"/>
        <input id="password" type="password" placeholder="password"/>
        <button onclick="post('/api/start', creds())">Start</button>
        <button onclick="post('/api/stop')">Stop</button>
        <button onclick="post('/api/run-once')">Run once</button>
        <button onclick="post('/api/login', creds())">Test login</button>
    </section>
    <section>
        <h2>Manual verification code</h2>
        <input id="code" type="text" placeholder="code from the live view"/>
        <button onclick="submitCode()">Submit</button>
    </section>
    <section>
        <h2>Live browser</h2>
        <canvas tabindex="1" oncontextmenu="return false;"></canvas>
    </section>
    <section>
        <h2>Logs</h2>
        <pre id="logs"></pre>
    </section>
</body>
<footer>
    <script>
      const creds = () => ({
        username: document.getElementById("username").value,
        password: document.getElementById("password").value,
      });

      const post = async (path, body) => {
        const res = await fetch(path, {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: body ? JSON.stringify(body) : null,
        });
        const data = await res.json();
        if (data.message) alert(data.message);
        refreshStatus();
      };

      const submitCode = () => {
        const input = document.getElementById("code");
        post('/api/captcha', { code: input.value });
        input.value = '';
      };

      let targetId = "";

      const refreshStatus = async () => {
        const res = await fetch('/api/status');
        const st = await res.json();
        const rows = [
          ["Running", st.running ? "yes" : "no"],
          ["Logged in", st.login_status ? "yes" : "no"],
          ["Last check", st.last_check || "-"],
          ["Cases on page", st.total_cases],
          ["Cases processed", st.processed_cases],
        ];
        if (st.error_message) rows.push(["Last error", st.error_message]);
        document.getElementById("status").innerHTML = rows
          .map(([k, v]) => "<tr><td>" + k + "</td><td class='" + (k === "Last error" ? "err" : "") + "'>" + v + "</td></tr>")
          .join("");
        if (st.target_id && st.target_id !== targetId) {
          targetId = st.target_id;
          connectScreencast(targetId);
        }
      };

      const refreshLogs = async () => {
        const res = await fetch('/api/logs');
        const data = await res.json();
        const pre = document.getElementById("logs");
        pre.textContent = (data.lines || []).join("\n");
        pre.scrollTop = pre.scrollHeight;
      };

      setInterval(refreshStatus, 2000);
      setInterval(refreshLogs, 3000);
      refreshStatus();
      refreshLogs();

      const canvas = document.querySelector("canvas");
      const ctx = canvas.getContext("2d");

      let ws = null;
      let sessionId = null;
      let _id = 0;
      const id = () => _id++;

      const connectScreencast = (target) => {
        if (ws !== null) ws.close();
        sessionId = null;
        ws = new WebSocket(((window.location.protocol === "https:") ? "wss://" : "ws://") + window.location.host + "/ws/" + target);
        ws.onopen = function() {
          ws.send(JSON.stringify({
            id: id(),
            method: 'Target.attachToTarget',
            params: { targetId: target, flatten: true },
          }));
        };
        ws.onmessage = function(e) {
          const data = JSON.parse(e.data);
          if ('error' in data && data.error.message === 'No target with given id found') {
            ws.close();
          }
          switch (data.method) {
            case "Target.attachedToTarget":
              sessionId = data.params.sessionId;
              ws.send(JSON.stringify({
                sessionId,
                id: id(),
                method: 'Page.startScreencast',
                params: { format: "jpeg", quality: 80 },
              }));
              break;
            case "Page.screencastFrame":
              const img = new Image();
              img.onload = function() {
                canvas.width = img.width;
                canvas.height = img.height;
                ctx.drawImage(img, 0, 0);
              };
              img.src = "data:image/jpeg;base64," + data.params.data;
              ws.send(JSON.stringify({
                sessionId,
                id: id(),
                method: 'Page.screencastFrameAck',
                params: { sessionId: data.params.sessionId },
              }));
              break;
            default:
              break;
          }
        };
        ws.onclose = function() { sessionId = null; };
      };

      const mouseEvent = (e) => {
        if (sessionId === null) return;
        const buttons = { 1: 'left', 2: 'middle', 3: 'right' };
        const types = {
          mousedown: 'mousePressed',
          mouseup: 'mouseReleased',
        };
        if (!(e.type in types)) return;

        const scaleX = canvas.width / canvas.getBoundingClientRect().width;
        const scaleY = canvas.height / canvas.getBoundingClientRect().height;
        ws.send(JSON.stringify({
          sessionId,
          id: id(),
          method: 'Input.dispatchMouseEvent',
          params: {
            type: types[e.type],
            x: Math.floor(e.offsetX * scaleX),
            y: Math.floor(e.offsetY * scaleY),
            button: buttons[e.which],
            clickCount: 1,
          },
        }));
      };
      canvas.addEventListener("mousedown", mouseEvent, true);
      canvas.addEventListener("mouseup", mouseEvent, true);

      const keyEvent = (e) => {
        if (sessionId === null) return;
        if (e.keyCode === 8) e.preventDefault();

        let type;
        switch (e.type) {
          case 'keydown': type = 'keyDown'; break;
          case 'keyup': type = 'keyUp'; break;
          case 'keypress': type = 'char'; break;
          default: return;
        }
        const text = type === 'char' ? String.fromCharCode(e.charCode) : undefined;
        ws.send(JSON.stringify({
          sessionId,
          id: id(),
          method: 'Input.dispatchKeyEvent',
          params: {
            type,
            text,
            unmodifiedText: text ? text.toLowerCase() : undefined,
            code: e.code,
            key: e.key,
            windowsVirtualKeyCode: e.keyCode,
            nativeVirtualKeyCode: e.keyCode,
          },
        }));
      };
      canvas.addEventListener("keydown", keyEvent, true);
      canvas.addEventListener("keyup", keyEvent, true);
      canvas.addEventListener("keypress", keyEvent, true);
    </script>
</footer>
</html>`
