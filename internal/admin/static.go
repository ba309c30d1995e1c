package admin

import "net/http"

func serveCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css")
	w.Write([]byte(`:root{--bg:#f6f5f2;--panel:#ffffff;--ink:#23212a;--line:#e3e0d8;--accent:#6d4fc2;--accent-ink:#ffffff;--danger:#c2403f;--muted:#8a8694}
body{font-family:"PT Sans",system-ui,Arial,sans-serif;margin:0;background:var(--bg);color:var(--ink)}
a{color:var(--accent);text-decoration:none} a:hover{text-decoration:underline}
header{padding:14px 0;background:var(--panel);border-bottom:2px solid var(--accent)}
.container{max-width:1060px;margin:0 auto;padding:0 18px}
main.container{padding-top:18px;padding-bottom:32px}
h1,h2,h3{margin:10px 0;font-weight:600}
table{width:100%;border-collapse:collapse;background:var(--panel)}
th{text-align:left;padding:10px;border-bottom:2px solid var(--line);color:var(--muted);font-weight:600;text-transform:uppercase;font-size:12px;letter-spacing:.04em}
td{padding:10px;border-bottom:1px solid var(--line)}
tr:last-child td{border-bottom:none}
.btn{display:inline-block;padding:7px 14px;border:1px solid var(--line);border-radius:4px;background:var(--panel);color:var(--ink);cursor:pointer;font-size:14px}
.btn:hover{border-color:var(--accent)}
.btn-primary{background:var(--accent);border-color:var(--accent);color:var(--accent-ink)}
.btn-danger{background:var(--danger);border-color:var(--danger);color:#fff}
input,textarea,select{width:100%;box-sizing:border-box;padding:8px;background:var(--panel);color:var(--ink);border:1px solid var(--line);border-radius:4px}
input:focus{outline:2px solid var(--accent);outline-offset:-1px}
.grid{display:grid;gap:14px}
.cols-2{grid-template-columns:1fr 1fr}
@media(max-width:760px){.cols-2{grid-template-columns:1fr}}
.card{background:var(--panel);border:1px solid var(--line);border-radius:6px;padding:16px;box-shadow:0 1px 2px rgba(35,33,42,.05)}
.small{color:var(--muted);font-size:13px}
.mono{font-family:"PT Mono",ui-monospace,Consolas,monospace}
code,pre{background:#f0eee8;border:1px solid var(--line);border-radius:4px;padding:8px;display:block;white-space:pre-wrap}`))
}

func serveJS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Write([]byte(`// опасные формы (снятие пиров) подтверждаем перед отправкой
document.addEventListener('submit', function (e) {
  var danger = e.target.querySelector && e.target.querySelector('.btn-danger');
  if (danger && !window.confirm('Действие необратимо. Продолжить?')) {
    e.preventDefault();
  }
});
`))
}
