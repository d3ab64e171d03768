// Package view renders the single HTML page of the chat client.
package view

import (
	"io"

	cmp "maragu.dev/gomponents"
	"maragu.dev/gomponents/components"
	g "maragu.dev/gomponents/html"
)

// ChatPage is the browser client: a login form, the message list and the
// composer. All live traffic goes through /ws; the script below only renders.
func ChatPage(title, lang string) cmp.Node {
	return components.HTML5(components.HTML5Props{
		Title:    title,
		Language: lang,
		Head: []cmp.Node{
			g.Meta(g.Name("viewport"), g.Content("width=device-width, initial-scale=1")),
			g.StyleEl(cmp.Raw(pageCSS)),
		},
		Body: []cmp.Node{
			g.Main(
				g.Class("chat"),
				g.H1(cmp.Text(title)),
				loginForm(),
				g.Div(g.ID("me"), g.Class("me"), cmp.Attr("hidden"),
					g.Span(g.ID("me-name")),
					g.Button(g.ID("logout"), g.Type("button"), cmp.Text("Logout")),
				),
				g.P(g.ID("status"), g.Class("status")),
				g.Ul(g.ID("messages"), g.Class("messages")),
				composer(),
			),
			g.Script(cmp.Raw(pageJS)),
		},
	})
}

// RenderChatPage writes ChatPage to w.
func RenderChatPage(w io.Writer, title, lang string) error {
	return ChatPage(title, lang).Render(w)
}

func loginForm() cmp.Node {
	return g.Form(
		g.ID("login"), g.Class("login"),
		g.Input(g.Name("username"), g.Placeholder("username"), cmp.Attr("maxlength", "64"), cmp.Attr("autocomplete", "username")),
		g.Button(g.Type("submit"), cmp.Text("Login")),
	)
}

func composer() cmp.Node {
	return g.Form(
		g.ID("composer"), g.Class("composer"),
		g.Input(g.Name("text"), g.Placeholder("message"), cmp.Attr("maxlength", "4000"), cmp.Attr("autocomplete", "off")),
		g.Input(g.Type("file"), g.Name("image"), cmp.Attr("accept", "image/png,image/jpeg")),
		g.Button(g.Type("submit"), cmp.Text("Send")),
	)
}

const pageCSS = `
body { font-family: sans-serif; margin: 0; background: #f4f4f6; }
.chat { max-width: 720px; margin: 0 auto; padding: 1rem; }
.messages { list-style: none; padding: 0; min-height: 300px; background: #fff; border-radius: 6px; }
.messages li { padding: .5rem .75rem; border-bottom: 1px solid #eee; }
.messages img { max-width: 240px; display: block; margin-top: .25rem; }
.messages .meta { color: #888; font-size: .8rem; margin-right: .5rem; }
.messages button { float: right; font-size: .75rem; }
.status { color: #b00; min-height: 1.2em; }
.composer, .login, .me { display: flex; gap: .5rem; margin: .5rem 0; }
.composer input[name=text] { flex: 1; }
`

const pageJS = `
(function () {
  const $ = (id) => document.getElementById(id);
  let ws = null;
  let seq = 0;

  function status(text) { $("status").textContent = text || ""; }

  function render(m) {
    if (document.querySelector('[data-id="' + m.id + '"]')) return;
    const li = document.createElement("li");
    li.dataset.id = m.id;
    const meta = document.createElement("span");
    meta.className = "meta";
    meta.textContent = m.display_name + " " + new Date(m.created_at).toLocaleTimeString();
    const del = document.createElement("button");
    del.textContent = "x";
    del.onclick = () => send("delete_message", { id: m.id });
    li.append(meta, document.createTextNode(m.text || ""), del);
    if (m.image_url) {
      const img = document.createElement("img");
      img.src = m.image_url;
      li.append(img);
    }
    $("messages").append(li);
  }

  function send(type, payload) {
    if (!ws || ws.readyState !== WebSocket.OPEN) return;
    ws.send(JSON.stringify({ type: type, ref: String(++seq), payload: payload }));
  }

  async function loadHistory() {
    const res = await fetch("/messages");
    const body = await res.json();
    $("messages").innerHTML = "";
    (body.messages || []).forEach(render);
  }

  function connect() {
    const proto = location.protocol === "https:" ? "wss://" : "ws://";
    ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = () => { status(""); loadHistory(); };
    ws.onclose = () => { status("disconnected"); setTimeout(connect, 2000); };
    ws.onmessage = (ev) => {
      const f = JSON.parse(ev.data);
      if (f.type === "new_message") render(f.payload);
      if (f.type === "message_deleted") {
        const li = document.querySelector('[data-id="' + f.payload.id + '"]');
        if (li) li.remove();
      }
      if (f.type === "error") status(f.payload.message);
    };
  }

  function loggedIn(user) {
    $("login").hidden = true;
    $("me").hidden = false;
    $("me-name").textContent = user.display_name;
    if (ws) ws.close(); else connect();
  }

  $("login").onsubmit = async (ev) => {
    ev.preventDefault();
    const res = await fetch("/login", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ username: ev.target.username.value }),
    });
    const body = await res.json();
    if (!res.ok) { status(body.reason); return; }
    loggedIn(body);
  };

  $("logout").onclick = async () => {
    await fetch("/logout", { method: "POST" });
    location.reload();
  };

  $("composer").onsubmit = async (ev) => {
    ev.preventDefault();
    const form = ev.target;
    let imageURL = "";
    if (form.image.files.length > 0) {
      const data = new FormData();
      data.append("image", form.image.files[0]);
      const res = await fetch("/upload-image", { method: "POST", body: data });
      const body = await res.json();
      if (!res.ok) { status(body.reason); return; }
      imageURL = body.image_url;
    }
    send("send_message", { text: form.text.value, image_url: imageURL });
    form.reset();
  };

  fetch("/current_user").then((res) => res.ok ? res.json().then(loggedIn) : connect());
})();
`
